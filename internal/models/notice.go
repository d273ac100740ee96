package models

import (
	"time"
)

// FetchMode 页面获取方式
type FetchMode string

const (
	ModeFast     FetchMode = "requests"   // 轻量HTTP直接获取
	ModeRendered FetchMode = "playwright" // 浏览器渲染获取
)

// FetchResult 页面获取结果
// 由Fetcher或Renderer产生,解析阶段消费一次后即丢弃
type FetchResult struct {
	HTML string    // 页面内容
	Mode FetchMode // 获取方式
	OK   bool      // 是否成功(网络错误/超时/HTTP错误状态均为false)
}

// ExtractionMethod 列表项ID提取方法
type ExtractionMethod string

const (
	MethodDataAttr    ExtractionMethod = "data_attr"    // data-id类属性
	MethodOnclickArg  ExtractionMethod = "onclick_arg"  // 内联点击事件参数
	MethodHiddenField ExtractionMethod = "hidden_field" // 隐藏input字段
	MethodNone        ExtractionMethod = "none"         // 未提取到(正常情况,非错误)
)

// ItemIdentifier 列表项的源站标识
// SourceItemID为空表示未提取到ID,属于预期内的结果
type ItemIdentifier struct {
	SourceItemID string           `json:"source_item_id"`
	Method       ExtractionMethod `json:"extraction_method"`
}

// HasID 是否提取到了源站ID
func (id ItemIdentifier) HasID() bool {
	return id.SourceItemID != ""
}

// ListItem 列表页解析出的单条公告条目
// 创建后不可变
type ListItem struct {
	RawFragment string     // 原始HTML片段
	Title       string     // 公告标题
	ListURL     string     // 列表中携带的详情链接(可能为空)
	PublishedAt *time.Time // 发布日期(可能为空)
	HTMLOrText  string     // API响应中直接携带的内容(可能为空)
}

// Notice 完整公告记录
// 以CanonicalKey作为upsert主键写入存储
type Notice struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	URL             string            `json:"url,omitempty"`
	SourceItemID    string            `json:"source_item_id,omitempty"`
	CanonicalKey    string            `json:"canonical_key"`
	PublishedAt     *time.Time        `json:"published_at,omitempty"`
	RawText         string            `json:"raw_text"`
	ContentHash     string            `json:"content_hash"`
	ExtractedFields map[string]string `json:"extracted_fields,omitempty"`
	Analysis        *AnalysisResult   `json:"analysis,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ResolveMethod 详情获取方法标识
type ResolveMethod string

const (
	ResolveDirectURL     ResolveMethod = "direct_url"     // 列表自带URL直接访问
	ResolveTemplate1     ResolveMethod = "template_1"     // URL模板1
	ResolveTemplate2     ResolveMethod = "template_2"     // URL模板2
	ResolveTemplate3     ResolveMethod = "template_3"     // URL模板3
	ResolveTemplate4     ResolveMethod = "template_4"     // URL模板4
	ResolveClickFallback ResolveMethod = "click_fallback" // 浏览器模拟点击
	ResolveNone          ResolveMethod = "none"           // 全部失败
)

// 详情解析失败原因标签(写入RunStats.FailureReasons)
const (
	ReasonNoSourceItemID       = "no_source_item_id"
	ReasonInterfaceNotCaptured = "interface_not_captured"
)
