package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscache "github.com/BaSui01/batchflow/internal/cache"
)

// DefaultRedisPrefix Redis 键前缀
const DefaultRedisPrefix = "batchflow:cache:"

// JSONKV RedisStore 依赖的最小键值接口，由 internal/cache.Manager 实现
type JSONKV interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore 共享 Redis 缓存，多个进程可复用同一份结果。
type RedisStore struct {
	kv     JSONKV
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 缓存。ttl 为 0 时沿用 Manager 的 DefaultTTL。
func NewRedisStore(kv JSONKV, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{kv: kv, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// Get 读取条目
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := s.kv.GetJSON(ctx, s.redisKey(key), &e)
	if errors.Is(err, rediscache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis cache get: %w", err)
	}
	return &e, nil
}

// Put 写入条目
func (s *RedisStore) Put(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return errors.New("nil cache entry")
	}
	e := cloneEntry(entry)
	e.Key = key
	if err := s.kv.SetJSON(ctx, s.redisKey(key), e, s.ttl); err != nil {
		return fmt.Errorf("redis cache put: %w", err)
	}
	return nil
}

// Invalidate 删除条目
func (s *RedisStore) Invalidate(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, s.redisKey(key)); err != nil {
		return fmt.Errorf("redis cache invalidate: %w", err)
	}
	return nil
}

// Close 关闭底层连接（若支持）
func (s *RedisStore) Close() error {
	if c, ok := s.kv.(Closer); ok {
		return c.Close()
	}
	return nil
}
