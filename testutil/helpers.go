package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/batchflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestContext 30 秒后超时，测试结束时取消
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// AssertMessagesEqual 逐条比较角色与内容，失败信息带下标
func AssertMessagesEqual(t *testing.T, expected, actual []types.Message) bool {
	t.Helper()
	if !assert.Len(t, actual, len(expected), "message count") {
		return false
	}
	ok := true
	for i := range expected {
		ok = assert.Equal(t, expected[i].Role, actual[i].Role, "message[%d].role", i) && ok
		ok = assert.Equal(t, expected[i].Content, actual[i].Content, "message[%d].content", i) && ok
	}
	return ok
}

// AssertEventuallyTrue 每 10ms 轮询一次 condition
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	assert.Eventually(t, condition, timeout, 10*time.Millisecond)
}

// WriteFiles 在 dir 下写入 name → content（name 可带子目录），返回 dir
func WriteFiles(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}
