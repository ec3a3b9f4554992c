package types

import "context"

type ctxKey int

const (
	runIDKey ctxKey = iota
	itemIDKey
)

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithRunID 标记一次批处理运行，空串不写入
func WithRunID(ctx context.Context, runID string) context.Context {
	return withString(ctx, runIDKey, runID)
}

// RunID 当前批处理运行的 id
func RunID(ctx context.Context) (string, bool) { return stringValue(ctx, runIDKey) }

// WithItemID 标记正在处理的条目，空串不写入
func WithItemID(ctx context.Context, itemID string) context.Context {
	return withString(ctx, itemIDKey, itemID)
}

// ItemID 正在处理的条目 id
func ItemID(ctx context.Context) (string, bool) { return stringValue(ctx, itemIDKey) }
