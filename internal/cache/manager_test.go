package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestManager(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := NewManager(Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestNewManager_Unreachable(t *testing.T) {
	_, err := NewManager(Config{Addr: "127.0.0.1:1", MaxRetries: -1}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestManager_GetSet(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mr.TTL("k"), "ttl 0 falls back to DefaultTTL")

	require.NoError(t, m.Set(ctx, "short", "v", time.Second))
	assert.Equal(t, time.Second, mr.TTL("short"))

	_, err = m.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Expiry(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	mr.FastForward(2 * time.Minute)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Delete(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", 0))
	require.NoError(t, m.Set(ctx, "b", "2", 0))
	require.NoError(t, m.Delete(ctx, "a", "b", "never-existed"))
	require.NoError(t, m.Delete(ctx))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestManager_JSON(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	type entry struct {
		Text     string `json:"text"`
		Attempts int    `json:"attempts"`
	}
	require.NoError(t, m.SetJSON(ctx, "e", entry{Text: "hi", Attempts: 2}, 0))

	var got entry
	require.NoError(t, m.GetJSON(ctx, "e", &got))
	assert.Equal(t, entry{Text: "hi", Attempts: 2}, got)

	require.NoError(t, mr.Set("corrupt", "{nope"))
	assert.Error(t, m.GetJSON(ctx, "corrupt", &got))
	assert.Error(t, m.SetJSON(ctx, "bad", func() {}, 0))
}

func TestManager_Closed(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Ping(ctx))
	mr.Close()
	assert.Error(t, m.Ping(ctx))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Ping(ctx), ErrManagerClosed)
	_, err := m.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.ErrorIs(t, m.Set(ctx, "x", "y", 0), ErrManagerClosed)
	assert.ErrorIs(t, m.Delete(ctx, "x"), ErrManagerClosed)
}

func TestManager_WatchLogsStateChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	core, logs := observer.New(zapcore.InfoLevel)
	m, err := NewManager(Config{
		Addr:                mr.Addr(),
		MaxRetries:          -1,
		HealthCheckInterval: 5 * time.Millisecond,
	}, zap.New(core))
	require.NoError(t, err)

	mr.SetError("LOADING")
	require.Eventually(t, func() bool {
		return logs.FilterMessage("redis unreachable").Len() > 0
	}, time.Second, 5*time.Millisecond)

	mr.SetError("")
	require.Eventually(t, func() bool {
		return logs.FilterMessage("redis reachable again").Len() > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
	assert.Equal(t, 1, logs.FilterMessage("redis unreachable").Len())
}

func TestManager_Concurrent(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			assert.NoError(t, m.Set(ctx, key, key, 0))
			v, err := m.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, key, v)
		}()
	}
	wg.Wait()
}
