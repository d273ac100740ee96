package analyzer

import (
	"fmt"
	"strings"
)

// 单次送入模型的正文上限(字符),超出部分截断
// 过长的正文会把本地模型的上下文挤爆,且尾部多为页脚噪音
const maxContentChars = 6000

const promptTemplate = `你是一名招投标信息分析助手。根据下面的公司画像和招标公告正文,评估该公告与公司的适配度。

公司画像:
%s

招标公告正文:
---
%s
---

请只输出一个JSON对象,不要输出任何其他文字,字段如下:
{
  "fit_score": 0到100的整数,适配度评分,
  "fit_label": "RECOMMEND"或"REVIEW"或"SKIP",
  "region_match": "HIGH"/"MED"/"LOW"/"UNKNOWN",地域匹配度,
  "scope_match": "HIGH"/"MED"/"LOW"/"UNKNOWN",业务范围匹配度,
  "scale_match": "HIGH"/"MED"/"LOW"/"UNKNOWN",项目规模匹配度,
  "qualification_match": "HIGH"/"MED"/"LOW"/"UNKNOWN",资质匹配度,
  "summary": "一句话中文摘要",
  "reasons": ["推荐或不推荐的理由"],
  "risk_flags": ["风险提示,没有则为空数组"],
  "key_fields": {
    "location": "项目地点,未知填空串",
    "scope": "项目内容",
    "deadline": "投标截止时间",
    "tonnage": "钢结构吨位,未提及填空串",
    "qualification": "资质要求"
  }
}`

// buildPrompt 构造分析提示词
func buildPrompt(companyProfile, rawText string) string {
	content := strings.TrimSpace(rawText)
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	return fmt.Sprintf(promptTemplate, companyProfile, content)
}
