package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sunbid/tendercrawl/internal/analyzer"
	"github.com/sunbid/tendercrawl/internal/crawlers"
	"github.com/sunbid/tendercrawl/internal/models"
	"github.com/sunbid/tendercrawl/internal/storage"
	"github.com/sunbid/tendercrawl/internal/utils"
	"golang.org/x/sync/errgroup"
)

// 列表接口的候选路径,按命中概率排序
var apiListPaths = []string{
	"/api/consult/notice/list",
	"/api/notice/list",
	"/api/tender/list",
	"/consult/api/notice/list",
}

// 分页参数的命名变体,不同接口风格分页字段不一致
var apiParamVariants = []func(page int) map[string]string{
	func(page int) map[string]string { return map[string]string{"page": fmt.Sprint(page), "pageSize": "20"} },
	func(page int) map[string]string { return map[string]string{"pageNo": fmt.Sprint(page), "pageSize": "20"} },
	func(page int) map[string]string { return map[string]string{"current": fmt.Sprint(page), "size": "20"} },
}

// Orchestrator 爬取流水线编排器
// 串起列表获取、ID提取、详情解析、AI分析和入库,item处理并发执行,
// 出站请求由共享Pacer全局限速
type Orchestrator struct {
	config   *Config
	fetcher  crawlers.PageFetcher
	renderer crawlers.PageRenderer
	resolver *crawlers.DetailResolver
	analyzer *analyzer.Analyzer
	store    *storage.Store
	monitor  *crawlers.ResourceMonitor
	stats    *models.RunStats

	mu      sync.Mutex
	notices []*models.Notice
}

// NewOrchestrator 创建编排器
// analyzer与store可为nil,分别对应--no-analyze与--no-db运行模式
func NewOrchestrator(config *Config, fetcher crawlers.PageFetcher, renderer crawlers.PageRenderer,
	resolver *crawlers.DetailResolver, a *analyzer.Analyzer, store *storage.Store,
	monitor *crawlers.ResourceMonitor) *Orchestrator {
	return &Orchestrator{
		config:   config,
		fetcher:  fetcher,
		renderer: renderer,
		resolver: resolver,
		analyzer: a,
		store:    store,
		monitor:  monitor,
		stats:    models.NewRunStats(),
	}
}

// Run 执行一次完整的爬取运行
// context取消时停止调度新item,已在处理的item跑完后返回已完成的部分
func (o *Orchestrator) Run(ctx context.Context) ([]*models.Notice, models.StatsSummary, error) {
	items := o.collectListItems(ctx)
	if len(items) == 0 {
		utils.Warn("未获取到任何公告列表项")
		return nil, o.stats.Summary(), nil
	}

	if o.config.Crawl.MaxNotices > 0 && len(items) > o.config.Crawl.MaxNotices {
		items = items[:o.config.Crawl.MaxNotices]
	}
	utils.Infof("本次处理 %d 条公告", len(items))

	workers := o.config.Crawl.MaxWorkers
	if o.monitor != nil {
		if limit := o.monitor.CalculateMaxWorkers(); limit < workers {
			utils.Infof("资源受限,并发数从 %d 降至 %d", workers, limit)
			workers = limit
		}
	}

	bar := utils.NewProgressBar(len(items), "处理公告")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for position, item := range items {
		if ctx.Err() != nil {
			utils.Warn("收到取消信号,停止调度新任务")
			break
		}
		position, item := position, item
		g.Go(func() error {
			defer bar.Add(1)
			o.processItem(gctx, item, position)
			return nil
		})
	}

	err := g.Wait()
	fmt.Println()

	summary := o.stats.Summary()
	o.logSummary(summary)
	return o.snapshot(), summary, err
}

// collectListItems 获取公告列表
// 优先探测JSON接口,接口全部未命中时回退到HTML列表页解析
func (o *Orchestrator) collectListItems(ctx context.Context) []models.ListItem {
	if items := o.discoverViaAPI(ctx); len(items) > 0 {
		utils.Infof("通过接口探测获取 %d 条列表项", len(items))
		return items
	}
	utils.Info("接口探测未命中,回退到列表页HTML解析")
	return o.fetchListPages(ctx)
}

// discoverViaAPI 依次探测候选列表接口
// 首个返回有效条目的路径+参数组合即胜出,用它翻完剩余页
func (o *Orchestrator) discoverViaAPI(ctx context.Context) []models.ListItem {
	base := strings.TrimRight(o.config.Site.BaseURL, "/")

	for _, path := range apiListPaths {
		for _, params := range apiParamVariants {
			if ctx.Err() != nil {
				return nil
			}
			apiURL := base + path
			data, ok := o.fetcher.FetchAPI(ctx, apiURL, params(1))
			if !ok {
				continue
			}
			items := crawlers.ParseAPIResponse(data, base)
			if len(items) == 0 {
				continue
			}

			utils.Infof("列表接口命中: %s", apiURL)
			for page := 2; page <= o.config.Crawl.MaxPages; page++ {
				if ctx.Err() != nil {
					break
				}
				pageData, ok := o.fetcher.FetchAPI(ctx, apiURL, params(page))
				if !ok {
					break
				}
				pageItems := crawlers.ParseAPIResponse(pageData, base)
				if len(pageItems) == 0 {
					break
				}
				items = append(items, pageItems...)
			}
			return items
		}
	}
	return nil
}

// fetchListPages 逐页获取并解析HTML列表页
func (o *Orchestrator) fetchListPages(ctx context.Context) []models.ListItem {
	var items []models.ListItem

	for page := 1; page <= o.config.Crawl.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		pageURL := o.config.Site.ListURL
		if page > 1 {
			sep := "?"
			if strings.Contains(pageURL, "?") {
				sep = "&"
			}
			pageURL = fmt.Sprintf("%s%spage=%d", pageURL, sep, page)
		}

		html, ok := o.fetchWithFallback(ctx, pageURL)
		if !ok {
			utils.Warnf("列表页获取失败: %s", pageURL)
			break
		}

		pageItems := crawlers.ParseNoticeList(html, o.config.Site.BaseURL)
		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
	}
	return items
}

// fetchWithFallback 轻量获取列表页,失败或内容过短时改用浏览器渲染
// 渲染兜底对每个URL最多触发一次(渲染内部自带重试)
func (o *Orchestrator) fetchWithFallback(ctx context.Context, pageURL string) (string, bool) {
	result := o.fetcher.Fetch(ctx, pageURL)
	if result.OK && len(result.HTML) >= o.config.Crawl.MinContentLength {
		return result.HTML, true
	}

	if !result.OK {
		utils.Infof("轻量获取失败,回退到浏览器渲染: %s", pageURL)
	} else {
		utils.Infof("内容过短 (%d < %d 字符),回退到浏览器渲染: %s",
			len(result.HTML), o.config.Crawl.MinContentLength, pageURL)
	}

	if o.renderer == nil {
		return "", false
	}
	rendered := o.renderer.Render(ctx, pageURL)
	if rendered.OK {
		return rendered.HTML, true
	}
	return "", false
}

// processItem 处理单条公告: 提取ID → 构造去重键 → 解析详情 →
// 变更检测 → AI分析 → 入库
func (o *Orchestrator) processItem(ctx context.Context, item models.ListItem, position int) {
	identifier := crawlers.ExtractIdentifier(item.RawFragment)
	o.stats.RecordListExtraction(identifier.HasID())

	key := crawlers.BuildCanonicalKey(o.config.Site.Name, identifier.SourceItemID, position, item.Title)

	var content string
	if item.HTMLOrText != "" {
		// 接口响应自带正文,跳过详情解析
		content = item.HTMLOrText
		o.stats.RecordDetailResolution(true, "")
	} else {
		resolved, method, reason := o.resolver.Resolve(ctx, item, identifier.SourceItemID, position)
		if method == models.ResolveNone {
			o.stats.RecordDetailResolution(false, reason)
			utils.Warnf("详情解析失败 %q: %s", item.Title, reason)
			return
		}
		o.stats.RecordDetailResolution(true, "")
		content = resolved
	}

	rawText := crawlers.ExtractRawText(content)
	if strings.TrimSpace(rawText) == "" {
		rawText = content
	}
	hash := crawlers.ContentHash(rawText)

	// 内容未变化的公告跳过重复分析
	if o.store != nil {
		existing, err := o.store.GetByCanonicalKey(key)
		if err != nil {
			utils.Warnf("查询历史记录失败 %q: %v", key, err)
		} else if existing != nil && existing.ContentHash == hash {
			utils.Debugf("内容未变化,跳过: %q", item.Title)
			o.appendNotice(existing)
			return
		}
	}

	notice := &models.Notice{
		Title:           item.Title,
		URL:             item.ListURL,
		SourceItemID:    identifier.SourceItemID,
		CanonicalKey:    key,
		PublishedAt:     item.PublishedAt,
		RawText:         rawText,
		ContentHash:     hash,
		ExtractedFields: crawlers.ExtractFields(rawText),
	}

	if o.analyzer != nil {
		notice.Analysis = o.analyzer.Analyze(ctx, notice.Title, rawText)
	}

	if o.store != nil {
		if _, err := o.store.UpsertNotice(notice); err != nil {
			utils.Errorf("公告入库失败 %q: %v", notice.Title, err)
		}
	}

	o.appendNotice(notice)
}

func (o *Orchestrator) appendNotice(notice *models.Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, notice)
}

func (o *Orchestrator) snapshot() []*models.Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]*models.Notice, len(o.notices))
	copy(result, o.notices)
	return result
}

// logSummary 输出运行统计
func (o *Orchestrator) logSummary(summary models.StatsSummary) {
	utils.Infof("[STATS] 列表ID提取: %d/%d (%.1f%%)",
		summary.ListIDExtracted, summary.ListIDTotal, summary.ListIDRate*100)
	utils.Infof("[STATS] 详情解析: %d/%d (%.1f%%)",
		summary.DetailResolved, summary.DetailTotal, summary.DetailRate*100)
	if len(summary.FailureReasons) > 0 {
		utils.Infof("[STATS] 失败原因分布: %v", summary.FailureReasons)
	}
}
