package crawlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sunbid/tendercrawl/internal/models"
	"github.com/sunbid/tendercrawl/internal/utils"
)

// PageRenderer 浏览器渲染接口
// Orchestrator与DetailResolver通过它触发渲染兜底和模拟点击
type PageRenderer interface {
	// Render 渲染页面并返回DOM内容
	Render(ctx context.Context, pageURL string) models.FetchResult
	// ClickAndCapture 在列表页模拟点击第position行(或标题匹配的行),
	// 等待详情面板出现后返回其文本
	ClickAndCapture(ctx context.Context, listURL, title string, position int) (string, error)
}

// 详情面板/弹窗的候选选择器,命中任意一个即认为详情已展开
const detailPanelSelector = ".notice-detail, .detail, .modal, article, [class*=detail]"

// Renderer 浏览器渲染器(基于Rod)
// 浏览器实例是整个运行期间唯一的共享资源: 首次使用时惰性启动,
// 通过Close保证所有退出路径(含panic)都能回收浏览器进程
type Renderer struct {
	config         models.CrawlConfig
	headerProvider models.HeaderProvider
	pacer          *Pacer

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// NewRenderer 创建渲染器(不立即启动浏览器)
func NewRenderer(config models.CrawlConfig, headerProvider models.HeaderProvider, pacer *Pacer) *Renderer {
	return &Renderer{
		config:         config,
		headerProvider: headerProvider,
		pacer:          pacer,
	}
}

// ensureBrowser 惰性启动浏览器,整个运行期间只启动一次
func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("渲染器已关闭")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(r.config.Headless)
	// 目标站点证书链偶发不完整
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	r.launcher = l
	r.browser = browser
	utils.Debugf("浏览器已启动: %s", controlURL)
	return browser, nil
}

// Close 关闭浏览器并回收子进程
// 必须在运行结束时调用(defer),泄漏浏览器进程是主要的资源风险
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
	utils.Debugf("浏览器已关闭")
}

// Render 渲染页面,失败时按配置重试
// 每次尝试独立应用渲染超时,重试耗尽后返回OK=false
func (r *Renderer) Render(ctx context.Context, pageURL string) models.FetchResult {
	result := models.FetchResult{Mode: models.ModeRendered}

	attempts := r.config.RenderRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result
		}
		if err := r.pacer.Wait(ctx); err != nil {
			return result
		}

		utils.Infof("[FETCH_MODE=playwright] 渲染页面 (尝试 %d/%d): %s", attempt, attempts, pageURL)

		html, err := r.renderOnce(ctx, pageURL)
		if err == nil {
			result.HTML = html
			result.OK = true
			utils.Infof("[FETCH_MODE=playwright] 渲染成功 (%d 字符)", len(html))
			return result
		}

		utils.Warnf("[FETCH_MODE=playwright] 渲染失败 (尝试 %d/%d) [%s]: %v", attempt, attempts, pageURL, err)
	}

	return result
}

// renderOnce 执行单次渲染
// Rod的Must系列API以panic报错,这里统一recover转为error
func (r *Renderer) renderOnce(ctx context.Context, pageURL string) (html string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("渲染panic: %v", rec)
		}
	}()

	browser, err := r.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("创建stealth页面失败: %w", err)
	}
	defer page.Close()

	timeout := time.Duration(r.config.RenderTimeoutMs) * time.Millisecond
	page = page.Context(ctx).Timeout(timeout)

	if err := r.applyUserAgent(page); err != nil {
		utils.Debugf("设置User-Agent失败: %v", err)
	}

	if err := page.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("导航失败: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("等待页面加载失败: %w", err)
	}

	// 等待页面稳定,保证JS渲染的内容已落入DOM
	if err := page.WaitStable(500 * time.Millisecond); err != nil {
		utils.Debugf("页面未在超时内稳定,继续提取: %v", err)
	}

	content, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("提取DOM失败: %w", err)
	}
	return content, nil
}

// ClickAndCapture 模拟点击列表行并捕获详情文本
// 优先按标题文本匹配行,匹配不到时退回第position行
func (r *Renderer) ClickAndCapture(ctx context.Context, listURL, title string, position int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("模拟点击panic: %v", rec)
		}
	}()

	if err := r.pacer.Wait(ctx); err != nil {
		return "", err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("创建stealth页面失败: %w", err)
	}
	defer page.Close()

	timeout := time.Duration(r.config.RenderTimeoutMs) * time.Millisecond
	page = page.Context(ctx).Timeout(timeout)

	if err := page.Navigate(listURL); err != nil {
		return "", fmt.Errorf("导航失败: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("等待页面加载失败: %w", err)
	}
	if err := page.WaitStable(500 * time.Millisecond); err != nil {
		utils.Debugf("列表页未在超时内稳定,继续: %v", err)
	}

	row, err := r.findListRow(page, title, position)
	if err != nil {
		return "", err
	}

	if err := row.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("点击列表行失败: %w", err)
	}

	// 等待详情面板/弹窗出现
	panel, err := page.Element(detailPanelSelector)
	if err != nil {
		return "", fmt.Errorf("详情面板未出现: %w", err)
	}
	content, err := panel.Text()
	if err != nil {
		return "", fmt.Errorf("提取详情文本失败: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("详情面板内容为空")
	}
	return content, nil
}

// findListRow 定位要点击的列表行
func (r *Renderer) findListRow(page *rod.Page, title string, position int) (*rod.Element, error) {
	rows, err := page.Elements("table tr, .notice-item, .list-item")
	if err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("未找到列表行")
	}

	title = strings.TrimSpace(title)
	if title != "" {
		for _, row := range rows {
			rowText, textErr := row.Text()
			if textErr == nil && strings.Contains(rowText, title) {
				return row, nil
			}
		}
	}

	if position >= 0 && position < len(rows) {
		return rows[position], nil
	}
	return nil, fmt.Errorf("列表行不存在: position=%d, 行数=%d", position, len(rows))
}

// applyUserAgent 将头部配置中的User-Agent应用到页面
func (r *Renderer) applyUserAgent(page *rod.Page) error {
	if r.headerProvider == nil {
		return nil
	}
	headers, err := r.headerProvider.GetHeaders()
	if err != nil {
		return err
	}
	ua, ok := headers["User-Agent"]
	if !ok || ua == "" {
		return nil
	}
	return page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
}
