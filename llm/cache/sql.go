package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/batchflow/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cacheRecord 缓存表行
type cacheRecord struct {
	CacheKey         string `gorm:"column:cache_key;primaryKey;size:191"`
	ItemID           string `gorm:"index;size:191"`
	ResponseText     string `gorm:"type:text"`
	Model            string `gorm:"size:128"`
	FinishReason     string `gorm:"size:64"`
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CreatedAt        time.Time
}

// TableName 固定表名
func (cacheRecord) TableName() string { return "batchflow_cache_entries" }

func recordFromEntry(key string, e *Entry) cacheRecord {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return cacheRecord{
		CacheKey:         key,
		ItemID:           e.ItemID,
		ResponseText:     e.ResponseText,
		Model:            e.Model,
		FinishReason:     e.FinishReason,
		PromptTokens:     e.Usage.PromptTokens,
		CompletionTokens: e.Usage.CompletionTokens,
		TotalTokens:      e.Usage.TotalTokens,
		CreatedAt:        created,
	}
}

func (r cacheRecord) entry() *Entry {
	return &Entry{
		Key:          r.CacheKey,
		ItemID:       r.ItemID,
		ResponseText: r.ResponseText,
		Model:        r.Model,
		FinishReason: r.FinishReason,
		Usage: types.TokenUsage{
			PromptTokens:     r.PromptTokens,
			CompletionTokens: r.CompletionTokens,
			TotalTokens:      r.TotalTokens,
		},
		CreatedAt: r.CreatedAt,
	}
}

// SQLStore 基于 GORM 的关系型数据库缓存（PostgreSQL / MySQL / SQLite）
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore 创建 SQL 缓存；autoMigrate 为 true 时自动建表
func NewSQLStore(db *gorm.DB, autoMigrate bool) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("nil gorm db")
	}
	if autoMigrate {
		if err := db.AutoMigrate(&cacheRecord{}); err != nil {
			return nil, fmt.Errorf("migrate cache table: %w", err)
		}
	}
	return &SQLStore{db: db}, nil
}

// Get 读取条目
func (s *SQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	var rec cacheRecord
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("sql cache get: %w", err)
	}
	return rec.entry(), nil
}

// Put 以单条 upsert 写入，读者不会看到半更新的行
func (s *SQLStore) Put(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return errors.New("nil cache entry")
	}
	rec := recordFromEntry(key, entry)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("sql cache put: %w", err)
	}
	return nil
}

// Invalidate 删除条目
func (s *SQLStore) Invalidate(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&cacheRecord{}).Error
	if err != nil {
		return fmt.Errorf("sql cache invalidate: %w", err)
	}
	return nil
}
