package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	_, ok := RunID(ctx)
	assert.False(t, ok)

	ctx = WithItemID(WithRunID(ctx, "run-1"), "item-1")
	run, ok := RunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "run-1", run)
	item, ok := ItemID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "item-1", item)

	// 内层覆盖外层
	item, _ = ItemID(WithItemID(ctx, "item-2"))
	assert.Equal(t, "item-2", item)
}

func TestContextIDs_EmptyNotStored(t *testing.T) {
	base := context.Background()
	assert.Equal(t, base, WithRunID(base, ""))
	assert.Equal(t, base, WithItemID(base, ""))
}
