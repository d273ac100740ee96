package models

import "errors"

// FitLabel 推荐标签
type FitLabel string

const (
	LabelRecommend FitLabel = "RECOMMEND" // 推荐跟进
	LabelReview    FitLabel = "REVIEW"    // 需人工审核
	LabelSkip      FitLabel = "SKIP"      // 跳过
)

// MatchLevel 各维度匹配度
type MatchLevel string

const (
	MatchHigh    MatchLevel = "HIGH"
	MatchMed     MatchLevel = "MED"
	MatchLow     MatchLevel = "LOW"
	MatchUnknown MatchLevel = "UNKNOWN"
)

var (
	errInvalidScore = errors.New("fit_score必须在0-100之间")
	errInvalidLabel = errors.New("fit_label取值无效")
	errInvalidMatch = errors.New("匹配度取值无效")
)

// KeyFields AI提取的关键字段
type KeyFields struct {
	Location      string `json:"location"`      // 项目地点
	Scope         string `json:"scope"`         // 项目范围/内容
	Deadline      string `json:"deadline"`      // 投标截止时间
	Tonnage       string `json:"tonnage"`       // 钢结构吨位
	Qualification string `json:"qualification"` // 所需资质要求
}

// AnalysisResult 招标分析结果
// 由外部Ollama模型产生,经Schema校验后入库
type AnalysisResult struct {
	FitScore           int        `json:"fit_score"`           // 适配度评分 0-100
	FitLabel           FitLabel   `json:"fit_label"`           // 推荐标签
	RegionMatch        MatchLevel `json:"region_match"`        // 地域匹配度
	ScopeMatch         MatchLevel `json:"scope_match"`         // 范围匹配度
	ScaleMatch         MatchLevel `json:"scale_match"`         // 规模匹配度
	QualificationMatch MatchLevel `json:"qualification_match"` // 资质匹配度
	Summary            string     `json:"summary"`             // 分析摘要
	Reasons            []string   `json:"reasons"`             // 推荐/不推荐原因
	RiskFlags          []string   `json:"risk_flags"`          // 风险提示
	KeyFields          KeyFields  `json:"key_fields"`          // 关键字段
}

// Validate 校验分析结果的取值范围
func (r *AnalysisResult) Validate() error {
	if r.FitScore < 0 || r.FitScore > 100 {
		return errInvalidScore
	}
	switch r.FitLabel {
	case LabelRecommend, LabelReview, LabelSkip:
	default:
		return errInvalidLabel
	}
	for _, m := range []MatchLevel{r.RegionMatch, r.ScopeMatch, r.ScaleMatch, r.QualificationMatch} {
		switch m {
		case MatchHigh, MatchMed, MatchLow, MatchUnknown:
		default:
			return errInvalidMatch
		}
	}
	return nil
}

// FallbackAnalysisResult 构造fallback结果(LLM输出无效时使用)
func FallbackAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		FitScore:           50,
		FitLabel:           LabelReview,
		RegionMatch:        MatchUnknown,
		ScopeMatch:         MatchUnknown,
		ScaleMatch:         MatchUnknown,
		QualificationMatch: MatchUnknown,
		Summary:            "AI 分析失败,需要人工审核",
		Reasons:            []string{"AI 模型输出格式异常,已回退到人工审核模式"},
		RiskFlags:          []string{"需要人工确认项目适配度"},
	}
}
