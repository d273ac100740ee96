package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sunbid/tendercrawl/internal/analyzer"
	"github.com/sunbid/tendercrawl/internal/core"
	"github.com/sunbid/tendercrawl/internal/crawlers"
	"github.com/sunbid/tendercrawl/internal/storage"
	"github.com/sunbid/tendercrawl/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	configFile string
	logLevel   string

	maxNotices int
	delay      float64
	headless   bool
	outputDir  string
	noAnalyze  bool
	noDB       bool
)

var rootCmd = &cobra.Command{
	Use:   "tendercrawl",
	Short: "招标公告爬取与适配度分析工具",
	Long: `TenderCrawl - 招标公告情报采集工具

针对JS渲染的招标信息门户,自动完成:
  • 轻量HTTP获取 + 浏览器渲染兜底
  • 列表接口探测与HTML列表解析
  • 源站ID提取与跨运行去重
  • 详情内容多策略解析(直接URL/接口模板/模拟点击)
  • 本地Ollama模型适配度评估
  • SQLite入库与CSV/Markdown导出

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		logConfig := utils.DefaultLogConfig()
		logConfig.Level = config.Logging.Level
		logConfig.LogDir = config.Logging.LogDir
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.MergeCLIFlags(maxNotices, delay, headless, outputDir)

		// Ctrl+C优雅退出: 取消context,已在处理的公告跑完后落盘
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pacer := crawlers.NewPacer(config.Crawl.Delay)
		headerManager := core.NewHeaderManager(config.Site.BaseURL, config.Site.ListURL, config.Headers)
		fetcher := crawlers.NewFetcher(config.Crawl, headerManager, pacer)

		renderer := crawlers.NewRenderer(config.Crawl, headerManager, pacer)
		defer renderer.Close()

		resolver := crawlers.NewDetailResolver(config.Site.BaseURL, config.Site.ListURL,
			fetcher, renderer, config.Crawl.MinContentLength)

		var a *analyzer.Analyzer
		if !noAnalyze {
			a = analyzer.New(config.Ollama, config.Company.Profile)
		}

		var store *storage.Store
		if !noDB {
			store, err = storage.Open(config.DB.Path)
			if err != nil {
				return fmt.Errorf("打开数据库失败: %w", err)
			}
			defer store.Close()
		}

		monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
			MaxWorkersLimit: config.Crawl.MaxWorkers,
		})

		orchestrator := core.NewOrchestrator(config, fetcher, renderer, resolver, a, store, monitor)
		notices, summary, runErr := orchestrator.Run(ctx)
		if runErr != nil {
			utils.Warnf("运行中出现错误: %v", runErr)
		}

		exporter := utils.NewExporter(config.Output.Dir)
		csvPath, mdPath, err := exporter.Export(notices, summary)
		if err != nil {
			return fmt.Errorf("导出结果失败: %w", err)
		}

		fmt.Println("\n==================================================")
		fmt.Println("📊 运行统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 处理公告数: %d\n", len(notices))
		fmt.Printf("✅ 列表ID提取: %d/%d\n", summary.ListIDExtracted, summary.ListIDTotal)
		fmt.Printf("✅ 详情解析: %d/%d\n", summary.DetailResolved, summary.DetailTotal)
		for reason, count := range summary.FailureReasons {
			fmt.Printf("❌ %s: %d\n", reason, count)
		}
		fmt.Printf("📄 CSV: %s\n", csvPath)
		fmt.Printf("📄 摘要: %s\n", mdPath)
		fmt.Println("==================================================")

		utils.Info("✨ 爬取任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("TenderCrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	rootCmd.Flags().IntVarP(&maxNotices, "max-notices", "n", 0, "单次运行处理公告上限 (0为不限)")
	rootCmd.Flags().Float64Var(&delay, "delay", -1, "全局请求间隔(秒),覆盖配置文件")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "导出目录")
	rootCmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "跳过AI适配度分析")
	rootCmd.Flags().BoolVar(&noDB, "no-db", false, "不写入数据库")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
