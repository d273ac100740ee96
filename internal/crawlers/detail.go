package crawlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sunbid/tendercrawl/internal/models"
	"github.com/sunbid/tendercrawl/internal/utils"
)

// 详情接口的URL模板,按历史命中率排序,依次尝试
var detailURLTemplates = []struct {
	method  models.ResolveMethod
	pattern string
}{
	{models.ResolveTemplate1, "/consult/notice/detail/%s"},
	{models.ResolveTemplate2, "/api/consult/notice/detail/%s"},
	{models.ResolveTemplate3, "/api/notice/detail/%s"},
	{models.ResolveTemplate4, "/consult/api/notice/%s"},
}

// DetailResolver 详情内容解析器
// 解析顺序: 列表项自带URL → 按ID拼接的接口模板 → 浏览器模拟点击
type DetailResolver struct {
	baseURL          string
	listURL          string
	fetcher          PageFetcher
	renderer         PageRenderer
	minContentLength int
}

// NewDetailResolver 创建详情解析器
// renderer可为nil,此时跳过渲染兜底与模拟点击
func NewDetailResolver(baseURL, listURL string, fetcher PageFetcher, renderer PageRenderer, minContentLength int) *DetailResolver {
	return &DetailResolver{
		baseURL:          strings.TrimRight(baseURL, "/"),
		listURL:          listURL,
		fetcher:          fetcher,
		renderer:         renderer,
		minContentLength: minContentLength,
	}
}

// Resolve 解析单条公告的详情内容
// 返回内容、命中的解析方式和失败原因(成功时为空串)
// 所有路径都失败时method为none,原因区分两类:
// 缺少ID且无法点击 → no_source_item_id;点击尝试过但失败 → interface_not_captured
// 运行被取消不算解析失败,原因留空,不计入失败原因分布
func (d *DetailResolver) Resolve(ctx context.Context, item models.ListItem, sourceItemID string, position int) (string, models.ResolveMethod, string) {
	// 列表项自带详情URL时直接获取
	if item.ListURL != "" {
		if content, ok := d.fetchWithFallback(ctx, item.ListURL); ok {
			utils.Infof("[DETAIL_FETCHER] 直接URL命中: %s", item.ListURL)
			return content, models.ResolveDirectURL, ""
		}
		utils.Warnf("[DETAIL_FETCHER] 直接URL失败: %s", item.ListURL)
	}

	// 按ID依次尝试接口模板
	if sourceItemID != "" {
		for _, tpl := range detailURLTemplates {
			if err := ctx.Err(); err != nil {
				return "", models.ResolveNone, ""
			}
			detailURL := d.baseURL + fmt.Sprintf(tpl.pattern, sourceItemID)
			content, ok := d.tryTemplate(ctx, detailURL)
			if ok {
				utils.Infof("[DETAIL_FETCHER] 模板命中 (%s): %s", tpl.method, detailURL)
				return content, tpl.method, ""
			}
			utils.Debugf("[DETAIL_FETCHER] 模板未命中 (%s): %s", tpl.method, detailURL)
		}
	}

	// 模拟点击兜底
	if d.renderer != nil {
		utils.Infof("[DETAIL_FETCHER] 回退到模拟点击: %q (第%d行)", item.Title, position)
		text, err := d.renderer.ClickAndCapture(ctx, d.listURL, item.Title, position)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, models.ResolveClickFallback, ""
		}
		utils.Warnf("[DETAIL_FETCHER] 模拟点击失败 %q: %v", item.Title, err)
		if ctx.Err() != nil {
			return "", models.ResolveNone, ""
		}
		return "", models.ResolveNone, models.ReasonInterfaceNotCaptured
	}

	if sourceItemID == "" {
		utils.Warnf("[DETAIL_FETCHER] 无源站ID且无法模拟点击: %q", item.Title)
		return "", models.ResolveNone, models.ReasonNoSourceItemID
	}
	return "", models.ResolveNone, models.ReasonInterfaceNotCaptured
}

// fetchWithFallback 先轻量获取,内容缺失或过短时改用浏览器渲染
func (d *DetailResolver) fetchWithFallback(ctx context.Context, pageURL string) (string, bool) {
	result := d.fetcher.Fetch(ctx, pageURL)
	if result.OK && len(result.HTML) >= d.minContentLength {
		return result.HTML, true
	}

	if d.renderer == nil {
		return "", false
	}
	rendered := d.renderer.Render(ctx, pageURL)
	if rendered.OK && len(rendered.HTML) >= d.minContentLength {
		return rendered.HTML, true
	}
	return "", false
}

// tryTemplate 获取单个模板URL并做结构校验
// 接口可能返回JSON信封或HTML页面,两种形态分别校验
func (d *DetailResolver) tryTemplate(ctx context.Context, detailURL string) (string, bool) {
	result := d.fetcher.Fetch(ctx, detailURL)
	if !result.OK || strings.TrimSpace(result.HTML) == "" {
		return "", false
	}
	return validateDetailPayload(result.HTML, d.minContentLength)
}

// validateDetailPayload 校验详情响应是否结构有效
// JSON响应要求携带data/list/records/content任一键,并优先抽出content字段;
// 非JSON响应按HTML对待,要求长度达到阈值
func validateDetailPayload(payload string, minContentLength int) (string, bool) {
	trimmed := strings.TrimSpace(payload)

	if strings.HasPrefix(trimmed, "{") {
		var envelope map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil {
			return extractJSONContent(envelope)
		}
		return "", false
	}

	if len(trimmed) >= minContentLength {
		return payload, true
	}
	return "", false
}

// extractJSONContent 从JSON信封中取出正文内容
func extractJSONContent(envelope map[string]interface{}) (string, bool) {
	if content, ok := envelope["content"].(string); ok && strings.TrimSpace(content) != "" {
		return content, true
	}
	if data, ok := envelope["data"].(map[string]interface{}); ok {
		if content, ok := data["content"].(string); ok && strings.TrimSpace(content) != "" {
			return content, true
		}
		// data对象存在但无content字段时,序列化整个data作为正文来源
		if raw, err := json.Marshal(data); err == nil && len(raw) > 2 {
			return string(raw), true
		}
	}
	for _, key := range []string{"list", "records"} {
		if _, ok := envelope[key]; ok {
			if raw, err := json.Marshal(envelope[key]); err == nil && len(raw) > 2 {
				return string(raw), true
			}
		}
	}
	return "", false
}
