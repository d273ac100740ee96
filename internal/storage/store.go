// Package storage 提供公告记录的SQLite持久化。
// 以canonical_key作为唯一键upsert,跨运行保持去重与变更检测。
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sunbid/tendercrawl/internal/models"
	"github.com/sunbid/tendercrawl/internal/utils"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notices (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	url              TEXT,
	source_item_id   TEXT,
	canonical_key    TEXT NOT NULL UNIQUE,
	published_at     TEXT,
	raw_text         TEXT,
	content_hash     TEXT,
	extracted_fields TEXT,
	analysis         TEXT,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notices_url ON notices(url);
CREATE INDEX IF NOT EXISTS idx_notices_content_hash ON notices(content_hash);
`

// Store 公告存储
type Store struct {
	db *sql.DB
}

// Open 打开(必要时创建)数据库并初始化表结构
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// SQLite单写者,限制连接数避免database is locked
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	utils.Debugf("数据库已打开: %s", path)
	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertNotice 按canonical_key写入公告
// 已存在时保留原ID与创建时间,只更新内容相关字段
// 返回值表示是否为新插入的记录
func (s *Store) UpsertNotice(notice *models.Notice) (bool, error) {
	existing, err := s.GetByCanonicalKey(notice.CanonicalKey)
	if err != nil {
		return false, err
	}

	now := time.Now()
	fieldsJSON := marshalOrEmpty(notice.ExtractedFields)
	analysisJSON := marshalOrEmpty(notice.Analysis)

	if existing != nil {
		notice.ID = existing.ID
		notice.CreatedAt = existing.CreatedAt
		notice.UpdatedAt = now

		_, err := s.db.Exec(`
			UPDATE notices
			SET title = ?, url = ?, source_item_id = ?, published_at = ?,
			    raw_text = ?, content_hash = ?, extracted_fields = ?, analysis = ?, updated_at = ?
			WHERE canonical_key = ?`,
			notice.Title, notice.URL, notice.SourceItemID, formatTime(notice.PublishedAt),
			notice.RawText, notice.ContentHash, fieldsJSON, analysisJSON, now.Format(time.RFC3339),
			notice.CanonicalKey)
		if err != nil {
			return false, fmt.Errorf("更新公告失败: %w", err)
		}
		return false, nil
	}

	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	notice.CreatedAt = now
	notice.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO notices
		(id, title, url, source_item_id, canonical_key, published_at,
		 raw_text, content_hash, extracted_fields, analysis, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		notice.ID, notice.Title, notice.URL, notice.SourceItemID, notice.CanonicalKey,
		formatTime(notice.PublishedAt), notice.RawText, notice.ContentHash,
		fieldsJSON, analysisJSON, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("插入公告失败: %w", err)
	}
	return true, nil
}

// GetByCanonicalKey 按去重键查询,未找到时返回nil
func (s *Store) GetByCanonicalKey(canonicalKey string) (*models.Notice, error) {
	return s.queryOne(`SELECT id, title, url, source_item_id, canonical_key, published_at,
		raw_text, content_hash, extracted_fields, analysis, created_at, updated_at
		FROM notices WHERE canonical_key = ?`, canonicalKey)
}

// GetByURL 按详情URL查询,未找到时返回nil
func (s *Store) GetByURL(url string) (*models.Notice, error) {
	return s.queryOne(`SELECT id, title, url, source_item_id, canonical_key, published_at,
		raw_text, content_hash, extracted_fields, analysis, created_at, updated_at
		FROM notices WHERE url = ?`, url)
}

// ListAll 按更新时间倒序返回全部公告
func (s *Store) ListAll() ([]*models.Notice, error) {
	rows, err := s.db.Query(`SELECT id, title, url, source_item_id, canonical_key, published_at,
		raw_text, content_hash, extracted_fields, analysis, created_at, updated_at
		FROM notices ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("查询公告列表失败: %w", err)
	}
	defer rows.Close()

	var notices []*models.Notice
	for rows.Next() {
		notice, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		notices = append(notices, notice)
	}
	return notices, rows.Err()
}

// rowScanner sql.Row与sql.Rows的共同扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) queryOne(query string, args ...interface{}) (*models.Notice, error) {
	row := s.db.QueryRow(query, args...)
	notice, err := scanNotice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return notice, nil
}

func scanNotice(row rowScanner) (*models.Notice, error) {
	var (
		notice       models.Notice
		publishedAt  sql.NullString
		fieldsJSON   sql.NullString
		analysisJSON sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(&notice.ID, &notice.Title, &notice.URL, &notice.SourceItemID,
		&notice.CanonicalKey, &publishedAt, &notice.RawText, &notice.ContentHash,
		&fieldsJSON, &analysisJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid && publishedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, publishedAt.String); err == nil {
			notice.PublishedAt = &t
		}
	}
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		_ = json.Unmarshal([]byte(fieldsJSON.String), &notice.ExtractedFields)
	}
	if analysisJSON.Valid && analysisJSON.String != "" {
		var analysis models.AnalysisResult
		if err := json.Unmarshal([]byte(analysisJSON.String), &analysis); err == nil {
			notice.Analysis = &analysis
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		notice.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		notice.UpdatedAt = t
	}
	return &notice, nil
}

func marshalOrEmpty(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(data)
	if s == "null" {
		return ""
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
