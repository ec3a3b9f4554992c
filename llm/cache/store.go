package cache

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/batchflow/types"
)

// ErrCacheMiss 键不存在
var ErrCacheMiss = errors.New("cache miss")

// IsMiss 判断错误是否为缓存未命中
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Entry 缓存条目，即一次成功调用的响应记录
type Entry struct {
	Key          string           `json:"key"`
	ItemID       string           `json:"item_id"`
	ResponseText string           `json:"response_text"`
	Model        string           `json:"model,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Usage        types.TokenUsage `json:"usage,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Store 响应缓存存储接口。
//
// Put 必须是原子的：并发读取者要么看到旧值，要么看到完整的新值，
// 绝不会看到部分写入的条目。
type Store interface {
	// Get 读取条目，不存在时返回 ErrCacheMiss
	Get(ctx context.Context, key string) (*Entry, error)

	// Put 写入或覆盖条目
	Put(ctx context.Context, key string, entry *Entry) error

	// Invalidate 删除条目，不存在时不报错
	Invalidate(ctx context.Context, key string) error
}

// Closer 可选接口，持有外部连接的存储实现它
type Closer interface {
	Close() error
}

// Close 关闭实现了 Closer 的存储
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
