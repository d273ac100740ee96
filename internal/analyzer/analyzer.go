// Package analyzer 调用本地Ollama模型评估招标公告与公司画像的适配度。
// 分析永不向调用方抛错: 模型不可用或输出无效时统一回退到
// 需人工审核的fallback结果,保证流水线不因分析环节中断。
package analyzer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sunbid/tendercrawl/internal/models"
	"github.com/sunbid/tendercrawl/internal/utils"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Analyzer 公告适配度分析器
type Analyzer struct {
	llm            llms.Model
	companyProfile string
	timeout        time.Duration
}

// New 创建分析器
// 连接失败不报错,首次Analyze时自然回退到fallback结果
func New(config models.OllamaConfig, companyProfile string) *Analyzer {
	llm, err := ollama.New(
		ollama.WithServerURL(config.BaseURL),
		ollama.WithModel(config.Model),
		ollama.WithFormat("json"),
	)
	if err != nil {
		utils.Warnf("初始化Ollama客户端失败,分析将全部回退: %v", err)
		llm = nil
	}

	timeout := time.Duration(config.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Analyzer{
		llm:            llm,
		companyProfile: companyProfile,
		timeout:        timeout,
	}
}

// Analyze 分析单条公告正文
// 任何失败(服务不可用、超时、输出格式异常)都返回fallback结果,不返回error
func (a *Analyzer) Analyze(ctx context.Context, title, rawText string) *models.AnalysisResult {
	if a.llm == nil {
		return models.FallbackAnalysisResult()
	}
	if strings.TrimSpace(rawText) == "" {
		utils.Warnf("公告正文为空,跳过AI分析: %q", title)
		return models.FallbackAnalysisResult()
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := buildPrompt(a.companyProfile, rawText)
	output, err := llms.GenerateFromSinglePrompt(callCtx, a.llm, prompt)
	if err != nil {
		utils.Warnf("AI分析调用失败 %q: %v", title, err)
		return models.FallbackAnalysisResult()
	}

	result := parseAnalysisOutput(output)
	utils.Debugf("AI分析完成 %q: score=%d label=%s", title, result.FitScore, result.FitLabel)
	return result
}

// parseAnalysisOutput 解析模型输出
// 模型偶尔在JSON外包一段说明文字,先截取首个大括号到末个大括号
func parseAnalysisOutput(output string) *models.AnalysisResult {
	jsonText := extractJSONObject(output)
	if jsonText == "" {
		utils.Warnf("AI输出中未找到JSON对象")
		return models.FallbackAnalysisResult()
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		utils.Warnf("AI输出JSON解析失败: %v", err)
		return models.FallbackAnalysisResult()
	}

	if err := result.Validate(); err != nil {
		// 字段部分有效时尽量抢救: 修正label,非法枚举归为UNKNOWN
		utils.Warnf("AI输出校验失败,尝试修正: %v", err)
		salvaged := salvageResult(&result)
		if salvaged != nil {
			return salvaged
		}
		return models.FallbackAnalysisResult()
	}
	return &result
}

// extractJSONObject 截取文本中首个完整的大括号区间
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// salvageResult 修正部分无效的分析结果
// 评分越界时整体放弃;枚举非法时按评分重推label,匹配度归为UNKNOWN
func salvageResult(r *models.AnalysisResult) *models.AnalysisResult {
	if r.FitScore < 0 || r.FitScore > 100 {
		return nil
	}

	switch r.FitLabel {
	case models.LabelRecommend, models.LabelReview, models.LabelSkip:
	default:
		switch {
		case r.FitScore >= 70:
			r.FitLabel = models.LabelRecommend
		case r.FitScore >= 40:
			r.FitLabel = models.LabelReview
		default:
			r.FitLabel = models.LabelSkip
		}
	}

	for _, m := range []*models.MatchLevel{&r.RegionMatch, &r.ScopeMatch, &r.ScaleMatch, &r.QualificationMatch} {
		switch *m {
		case models.MatchHigh, models.MatchMed, models.MatchLow, models.MatchUnknown:
		default:
			*m = models.MatchUnknown
		}
	}

	if err := r.Validate(); err != nil {
		return nil
	}
	return r
}
