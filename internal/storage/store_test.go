package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sunbid/tendercrawl/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleNotice() *models.Notice {
	published := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	return &models.Notice{
		Title:        "水电站机电安装招标公告",
		URL:          "https://bid.example.cn/consult/notice/1001",
		SourceItemID: "1001",
		CanonicalKey: "powerchina:1001",
		PublishedAt:  &published,
		RawText:      "招标正文内容",
		ContentHash:  "abc123",
		ExtractedFields: map[string]string{
			"location": "四川省",
		},
		Analysis: &models.AnalysisResult{
			FitScore:           80,
			FitLabel:           models.LabelRecommend,
			RegionMatch:        models.MatchHigh,
			ScopeMatch:         models.MatchHigh,
			ScaleMatch:         models.MatchMed,
			QualificationMatch: models.MatchHigh,
			Summary:            "匹配",
		},
	}
}

func TestStore_插入与查询(t *testing.T) {
	store := newTestStore(t)

	notice := sampleNotice()
	created, err := store.UpsertNotice(notice)
	if err != nil {
		t.Fatalf("UpsertNotice() error = %v", err)
	}
	if !created {
		t.Errorf("首次写入应为新插入")
	}
	if notice.ID == "" {
		t.Errorf("新记录应分配ID")
	}

	got, err := store.GetByCanonicalKey("powerchina:1001")
	if err != nil {
		t.Fatalf("GetByCanonicalKey() error = %v", err)
	}
	if got == nil {
		t.Fatalf("未查到记录")
	}
	if got.Title != notice.Title {
		t.Errorf("Title = %q, want %q", got.Title, notice.Title)
	}
	if got.ContentHash != "abc123" {
		t.Errorf("ContentHash = %q", got.ContentHash)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(*notice.PublishedAt) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, notice.PublishedAt)
	}
	if got.ExtractedFields["location"] != "四川省" {
		t.Errorf("ExtractedFields = %v", got.ExtractedFields)
	}
	if got.Analysis == nil || got.Analysis.FitScore != 80 {
		t.Errorf("Analysis = %+v", got.Analysis)
	}
}

func TestStore_按键更新(t *testing.T) {
	store := newTestStore(t)

	first := sampleNotice()
	if _, err := store.UpsertNotice(first); err != nil {
		t.Fatalf("首次写入失败: %v", err)
	}
	firstID := first.ID

	updated := sampleNotice()
	updated.RawText = "更新后的正文"
	updated.ContentHash = "def456"
	created, err := store.UpsertNotice(updated)
	if err != nil {
		t.Fatalf("更新写入失败: %v", err)
	}
	if created {
		t.Errorf("同canonical_key应为更新而非插入")
	}
	if updated.ID != firstID {
		t.Errorf("更新应保留原ID: %q != %q", updated.ID, firstID)
	}

	got, err := store.GetByCanonicalKey("powerchina:1001")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.ContentHash != "def456" {
		t.Errorf("ContentHash未更新: %q", got.ContentHash)
	}
	if !got.CreatedAt.Equal(updated.CreatedAt) {
		t.Errorf("CreatedAt不应变化")
	}

	all, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("记录数 = %d, want 1 (upsert不应产生重复)", len(all))
	}
}

func TestStore_未找到返回nil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetByCanonicalKey("powerchina:不存在")
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if got != nil {
		t.Errorf("未找到时应返回nil, got %+v", got)
	}

	got, err = store.GetByURL("https://nowhere.example.cn")
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if got != nil {
		t.Errorf("未找到时应返回nil")
	}
}

func TestStore_按URL查询(t *testing.T) {
	store := newTestStore(t)

	notice := sampleNotice()
	if _, err := store.UpsertNotice(notice); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	got, err := store.GetByURL(notice.URL)
	if err != nil {
		t.Fatalf("GetByURL() error = %v", err)
	}
	if got == nil || got.CanonicalKey != notice.CanonicalKey {
		t.Errorf("按URL查询结果错误: %+v", got)
	}
}

func TestStore_无分析结果的记录(t *testing.T) {
	store := newTestStore(t)

	notice := sampleNotice()
	notice.Analysis = nil
	notice.ExtractedFields = nil
	if _, err := store.UpsertNotice(notice); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	got, err := store.GetByCanonicalKey(notice.CanonicalKey)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.Analysis != nil {
		t.Errorf("Analysis应为nil, got %+v", got.Analysis)
	}
	if got.ExtractedFields != nil {
		t.Errorf("ExtractedFields应为nil, got %v", got.ExtractedFields)
	}
}
