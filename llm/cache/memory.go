package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// MemoryStore 进程内 LRU 缓存，可选 TTL。
// 既可单独使用（进程退出即丢失），也可作为 MultiLevel 的 L1。
type MemoryStore struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

type memItem struct {
	entry     *Entry
	expiresAt time.Time
}

// NewMemoryStore 创建内存缓存。capacity <= 0 表示不限容量，ttl 为 0 表示不过期。
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryStore{
		lru: lru.New(capacity),
		ttl: ttl,
		now: time.Now,
	}
}

// Get 读取条目
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	item := v.(memItem)
	if !item.expiresAt.IsZero() && s.now().After(item.expiresAt) {
		s.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return cloneEntry(item.entry), nil
}

// Put 写入条目
func (s *MemoryStore) Put(ctx context.Context, key string, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry == nil {
		return errors.New("nil cache entry")
	}
	e := cloneEntry(entry)
	e.Key = key

	item := memItem{entry: e}
	if s.ttl > 0 {
		item.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.lru.Add(key, item)
	s.mu.Unlock()
	return nil
}

// Invalidate 删除条目
func (s *MemoryStore) Invalidate(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.lru.Remove(key)
	s.mu.Unlock()
	return nil
}

// Len 当前条目数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Clear 清空
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.lru.Clear()
	s.mu.Unlock()
}
