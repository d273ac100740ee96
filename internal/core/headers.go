package core

import (
	"sync"

	"github.com/sunbid/tendercrawl/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

// HeaderManager 管理出站HTTP请求头部
// 实现 models.HeaderProvider 接口
// 合并顺序: 系统默认 < 配置文件,配置文件中的同名头部覆盖默认值
type HeaderManager struct {
	mu       sync.RWMutex
	defaults map[string]string
	config   map[string]string
}

// NewHeaderManager 创建头部管理器
// baseURL/listURL用于填充Origin与Referer,目标站点会校验这两个头部
func NewHeaderManager(baseURL, listURL string, configHeaders map[string]string) *HeaderManager {
	hm := &HeaderManager{
		defaults: defaultHeaders(baseURL, listURL),
		config:   make(map[string]string),
	}
	for name, value := range configHeaders {
		hm.config[name] = value
	}
	if len(hm.config) > 0 {
		utils.Debugf("加载了%d个自定义HTTP头部", len(hm.config))
	}
	return hm
}

// defaultHeaders 系统默认头部,模拟普通浏览器访问
func defaultHeaders(baseURL, listURL string) map[string]string {
	headers := map[string]string{
		"User-Agent":      DefaultUserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.5",
		"Accept-Encoding": "gzip, deflate, br",
	}
	if baseURL != "" {
		headers["Origin"] = baseURL
	}
	if listURL != "" {
		headers["Referer"] = listURL
	}
	return headers
}

// GetHeaders 返回合并后的头部
func (hm *HeaderManager) GetHeaders() (map[string]string, error) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	merged := make(map[string]string, len(hm.defaults)+len(hm.config))
	for name, value := range hm.defaults {
		merged[name] = value
	}
	for name, value := range hm.config {
		merged[name] = value
	}
	return merged, nil
}

// Set 覆盖单个头部(配置级)
func (hm *HeaderManager) Set(name, value string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.config[name] = value
}
