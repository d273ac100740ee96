package models

import "sync"

// RunStats 单次爬取运行的统计收集器
// 各计数器只增不减,可从多个item处理goroutine并发更新
// 生命周期: 运行开始时创建,运行结束时读取汇总,不跨运行持久化
type RunStats struct {
	mu sync.Mutex

	listIDExtracted int            // 列表项成功提取ID数
	listIDTotal     int            // 列表项总数
	detailResolved  int            // 详情解析成功数
	detailTotal     int            // 详情解析总数
	failureReasons  map[string]int // 失败原因 -> 次数
}

// NewRunStats 创建统计收集器
func NewRunStats() *RunStats {
	return &RunStats{
		failureReasons: make(map[string]int),
	}
}

// RecordListExtraction 记录一次列表项ID提取结果
func (s *RunStats) RecordListExtraction(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listIDTotal++
	if ok {
		s.listIDExtracted++
	}
}

// RecordDetailResolution 记录一次详情解析结果
// reason仅在失败时有意义,未出现过的原因隐式从0开始累加
func (s *RunStats) RecordDetailResolution(ok bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detailTotal++
	if ok {
		s.detailResolved++
		return
	}
	if reason != "" {
		s.failureReasons[reason]++
	}
}

// StatsSummary 运行统计汇总(读取时快照)
type StatsSummary struct {
	ListIDExtracted int            `json:"list_id_extracted"` // 列表ID提取成功数
	ListIDTotal     int            `json:"list_id_total"`     // 列表项总数
	DetailResolved  int            `json:"detail_resolved"`   // 详情解析成功数
	DetailTotal     int            `json:"detail_total"`      // 详情解析总数
	ListIDRate      float64        `json:"list_id_rate"`      // 提取成功率
	DetailRate      float64        `json:"detail_rate"`       // 解析成功率
	FailureReasons  map[string]int `json:"failure_reasons"`   // 失败原因分布
}

// Summary 生成统计汇总
// 比率在读取时计算,不预存
func (s *RunStats) Summary() StatsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	reasons := make(map[string]int, len(s.failureReasons))
	for k, v := range s.failureReasons {
		reasons[k] = v
	}

	summary := StatsSummary{
		ListIDExtracted: s.listIDExtracted,
		ListIDTotal:     s.listIDTotal,
		DetailResolved:  s.detailResolved,
		DetailTotal:     s.detailTotal,
		FailureReasons:  reasons,
	}
	if s.listIDTotal > 0 {
		summary.ListIDRate = float64(s.listIDExtracted) / float64(s.listIDTotal)
	}
	if s.detailTotal > 0 {
		summary.DetailRate = float64(s.detailResolved) / float64(s.detailTotal)
	}
	return summary
}
