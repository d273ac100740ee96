package models

import "fmt"

// SiteConfig 目标站点配置
type SiteConfig struct {
	Name    string `mapstructure:"name" json:"name"`         // 站点命名空间(canonical_key前缀)
	BaseURL string `mapstructure:"base_url" json:"base_url"` // 站点根URL
	ListURL string `mapstructure:"list_url" json:"list_url"` // 公告列表页URL
}

// Validate 验证站点配置
func (c *SiteConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("站点名称不能为空")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("站点BaseURL不能为空")
	}
	if c.ListURL == "" {
		return fmt.Errorf("公告列表URL不能为空")
	}
	return nil
}

// CrawlConfig 爬取配置
// 原实现中的固定常量(内容长度阈值、重试/超时)在这里全部作为可调配置
type CrawlConfig struct {
	Delay            float64 `mapstructure:"delay" json:"delay"`                           // 全局请求间隔(秒) (默认:1.0)
	FetchTimeout     int     `mapstructure:"fetch_timeout" json:"fetch_timeout"`           // HTTP获取超时(秒) (默认:30)
	RenderTimeoutMs  int     `mapstructure:"render_timeout_ms" json:"render_timeout_ms"`   // 单次渲染超时(毫秒) (默认:60000)
	RenderRetries    int     `mapstructure:"render_retries" json:"render_retries"`         // 渲染失败重试次数 (默认:2)
	MinContentLength int     `mapstructure:"min_content_length" json:"min_content_length"` // 内容过短阈值(字符) (默认:1000)
	MaxPages         int     `mapstructure:"max_pages" json:"max_pages"`                   // 列表最大页数 (默认:3)
	MaxNotices       int     `mapstructure:"max_notices" json:"max_notices"`               // 单次运行处理公告上限,0为不限
	MaxWorkers       int     `mapstructure:"max_workers" json:"max_workers"`               // item处理并发上限 (默认:2)
	Headless         bool    `mapstructure:"headless" json:"headless"`                     // 浏览器无头模式 (默认:true)
}

// Validate 验证爬取配置
func (c *CrawlConfig) Validate() error {
	if c.Delay < 0 {
		return fmt.Errorf("请求间隔不能为负数")
	}
	if c.FetchTimeout < 1 {
		return fmt.Errorf("HTTP超时必须大于0秒")
	}
	if c.RenderTimeoutMs < 1000 {
		return fmt.Errorf("渲染超时必须不小于1000毫秒")
	}
	if c.RenderRetries < 0 || c.RenderRetries > 10 {
		return fmt.Errorf("渲染重试次数必须在0-10之间")
	}
	if c.MinContentLength < 0 {
		return fmt.Errorf("内容长度阈值不能为负数")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("列表页数必须大于0")
	}
	if c.MaxNotices < 0 {
		return fmt.Errorf("公告数上限不能为负数")
	}
	if c.MaxWorkers < 1 || c.MaxWorkers > 64 {
		return fmt.Errorf("并发数必须在1-64之间")
	}
	return nil
}

// OllamaConfig 外部分析服务配置
// 地址与模型名仅透传,核心不做进一步校验
type OllamaConfig struct {
	BaseURL   string `mapstructure:"base_url" json:"base_url"` // 服务地址 (env: OLLAMA_BASE_URL)
	Model     string `mapstructure:"model" json:"model"`       // 模型名称 (env: OLLAMA_MODEL)
	TimeoutMs int    `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// HeaderProvider HTTP头部提供者接口
// Fetcher与Renderer通过它获取请求头,不关心头部来源
type HeaderProvider interface {
	GetHeaders() (map[string]string, error)
}
