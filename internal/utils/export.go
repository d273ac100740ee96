package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sunbid/tendercrawl/internal/models"
)

// Exporter 运行结果导出器
// 生成CSV(仅RECOMMEND/REVIEW)和Markdown摘要报告
type Exporter struct {
	outputDir string
}

// NewExporter 创建导出器
func NewExporter(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// Export 导出处理结果
// 返回生成的CSV和Markdown文件路径
func (e *Exporter) Export(notices []*models.Notice, summary models.StatsSummary) (csvPath, mdPath string, err error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("创建导出目录失败: %w", err)
	}

	ts := time.Now().Format("20060102_15")

	// 过滤出RECOMMEND/REVIEW记录(排除SKIP和无分析结果的)
	filtered := make([]*models.Notice, 0, len(notices))
	for _, n := range notices {
		if n.Analysis == nil {
			continue
		}
		if n.Analysis.FitLabel == models.LabelRecommend || n.Analysis.FitLabel == models.LabelReview {
			filtered = append(filtered, n)
		}
	}

	csvPath = filepath.Join(e.outputDir, fmt.Sprintf("recommend_%s.csv", ts))
	if err := e.writeCSV(csvPath, filtered); err != nil {
		return "", "", err
	}

	mdPath = filepath.Join(e.outputDir, fmt.Sprintf("digest_%s.md", ts))
	if err := e.writeDigest(mdPath, notices, filtered, summary); err != nil {
		return "", "", err
	}

	return csvPath, mdPath, nil
}

// writeCSV 写出推荐公告CSV
func (e *Exporter) writeCSV(path string, notices []*models.Notice) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建CSV文件失败: %w", err)
	}
	defer f.Close()

	// 写入UTF-8 BOM,兼容Excel打开中文内容
	if _, err := f.WriteString("\xEF\xBB\xBF"); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"title", "url", "published_at", "fit_score", "fit_label", "summary"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, n := range notices {
		published := ""
		if n.PublishedAt != nil {
			published = n.PublishedAt.Format("2006-01-02")
		}
		row := []string{
			n.Title,
			n.URL,
			published,
			fmt.Sprintf("%d", n.Analysis.FitScore),
			string(n.Analysis.FitLabel),
			n.Analysis.Summary,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

// writeDigest 写出Markdown摘要(概览计数 + Top10)
func (e *Exporter) writeDigest(path string, all, filtered []*models.Notice, summary models.StatsSummary) error {
	var recommend, review, skip, unknown int
	for _, n := range all {
		if n.Analysis == nil {
			unknown++
			continue
		}
		switch n.Analysis.FitLabel {
		case models.LabelRecommend:
			recommend++
		case models.LabelReview:
			review++
		case models.LabelSkip:
			skip++
		default:
			unknown++
		}
	}

	// Top10按分数降序
	top := make([]*models.Notice, len(filtered))
	copy(top, filtered)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Analysis.FitScore > top[j].Analysis.FitScore
	})
	if len(top) > 10 {
		top = top[:10]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# 投标情报摘要 %s\n\n", time.Now().Format("2006-01-02 15:04"))
	b.WriteString("## 概览\n\n")
	fmt.Fprintf(&b, "- 本次处理公告: %d 条\n", len(all))
	fmt.Fprintf(&b, "- 推荐(RECOMMEND): %d 条\n", recommend)
	fmt.Fprintf(&b, "- 待审(REVIEW): %d 条\n", review)
	fmt.Fprintf(&b, "- 跳过(SKIP): %d 条\n", skip)
	fmt.Fprintf(&b, "- 未分析: %d 条\n", unknown)
	fmt.Fprintf(&b, "- 列表ID提取: %d/%d (%.0f%%)\n", summary.ListIDExtracted, summary.ListIDTotal, summary.ListIDRate*100)
	fmt.Fprintf(&b, "- 详情解析: %d/%d (%.0f%%)\n\n", summary.DetailResolved, summary.DetailTotal, summary.DetailRate*100)

	if len(summary.FailureReasons) > 0 {
		b.WriteString("## 失败原因\n\n")
		reasons := make([]string, 0, len(summary.FailureReasons))
		for r := range summary.FailureReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", r, summary.FailureReasons[r])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Top 10\n\n")
	if len(top) == 0 {
		b.WriteString("(无推荐/待审公告)\n")
	}
	for i, n := range top {
		fmt.Fprintf(&b, "%d. [%d分][%s] %s\n", i+1, n.Analysis.FitScore, n.Analysis.FitLabel, n.Title)
		if n.URL != "" {
			fmt.Fprintf(&b, "   - %s\n", n.URL)
		}
		if n.Analysis.Summary != "" {
			fmt.Fprintf(&b, "   - %s\n", n.Analysis.Summary)
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
