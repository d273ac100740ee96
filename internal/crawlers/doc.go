// Package crawlers 实现自适应获取与解析流水线:
// 轻量HTTP获取(Fetcher)、浏览器渲染兜底(Renderer)、列表项ID提取、
// 规范化去重键构造以及详情内容解析(DetailResolver)。
//
// 所有出站请求(含渲染)共享同一个Pacer,按配置的全局间隔串行放行,
// 以遵守目标站点的频率限制。
package crawlers
