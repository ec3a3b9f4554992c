package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MultiLevel 两级缓存：L1 为本地 MemoryStore，L2 为持久/共享存储。
// 写入先落 L2 再更新 L1；L2 命中时回填 L1。
type MultiLevel struct {
	local  *MemoryStore
	remote Store
	logger *zap.Logger
}

// NewMultiLevel 创建多级缓存
func NewMultiLevel(local *MemoryStore, remote Store, logger *zap.Logger) *MultiLevel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiLevel{local: local, remote: remote, logger: logger.With(zap.String("component", "multilevel_cache"))}
}

// Get 获取缓存
func (c *MultiLevel) Get(ctx context.Context, key string) (*Entry, error) {
	// 1. 查本地缓存
	if c.local != nil {
		if e, err := c.local.Get(ctx, key); err == nil {
			c.logger.Debug("local cache hit", zap.String("key", key))
			return e, nil
		}
	}

	// 2. 查远端缓存
	e, err := c.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.local != nil {
		_ = c.local.Put(ctx, key, e)
	}
	c.logger.Debug("remote cache hit", zap.String("key", key))
	return e, nil
}

// Put 设置缓存
func (c *MultiLevel) Put(ctx context.Context, key string, entry *Entry) error {
	if err := c.remote.Put(ctx, key, entry); err != nil {
		// L2 失败时清掉 L1 中可能存在的旧值，避免两级不一致
		if c.local != nil {
			_ = c.local.Invalidate(ctx, key)
		}
		return err
	}
	if c.local != nil {
		_ = c.local.Put(ctx, key, entry)
	}
	return nil
}

// Invalidate 删除缓存
func (c *MultiLevel) Invalidate(ctx context.Context, key string) error {
	if c.local != nil {
		_ = c.local.Invalidate(ctx, key)
	}
	if err := c.remote.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("invalidate remote: %w", err)
	}
	return nil
}

// Close 关闭远端存储
func (c *MultiLevel) Close() error {
	return Close(c.remote)
}
