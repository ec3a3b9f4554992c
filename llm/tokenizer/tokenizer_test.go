package tokenizer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/batchflow/types"
	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
)

func TestEncodingForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o-mini", "o200k_base"},
		{"gpt-4o-2024-08-06", "o200k_base"},
		{"openai/gpt-4o", "o200k_base"},
		{"GPT-4-turbo", "cl100k_base"},
		{"gpt-3.5-turbo", "cl100k_base"},
		{"o3-mini", "o200k_base"},
		{"gemini-2.0-flash", ""},
		{"meta-llama/llama-3-70b", ""},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodingForModel(tt.model))
		})
	}
}

func TestForModel_UnknownFallsBackToEstimator(t *testing.T) {
	c := ForModel("gemini-2.0-flash")
	assert.Equal(t, "estimator", c.Name())
}

func TestEstimator(t *testing.T) {
	e := NewEstimator()
	assert.Equal(t, 0, e.CountTokens(""))
	assert.Equal(t, 1, e.CountTokens("hi"))
	assert.Equal(t, 4, e.CountTokens("0123456789abcdef"))

	msgs := []types.Message{
		types.NewSystemMessage("0123456789abcdef"),
		types.NewUserMessage("0123456789abcdef"),
	}
	// 2 * (4 开销 + 4) + 3
	assert.Equal(t, 19, e.CountMessages(msgs))
}

func TestEstimator_WideCharacters(t *testing.T) {
	e := NewEstimator()
	// 6 个汉字 / 1.5
	assert.Equal(t, 4, e.CountTokens("批量处理请求"))
	assert.Equal(t, 1, e.CountTokens("こ"))
	assert.Greater(t, e.CountTokens("안녕하세요 세계"), e.CountTokens("hello"))
}

func TestForModelContext_StalledLoadFallsBack(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	restore := SetEncodingLoader(func(string) (*tiktoken.Tiktoken, error) {
		calls.Add(1)
		<-release
		return nil, errors.New("offline")
	})
	t.Cleanup(func() {
		close(release)
		restore()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	c := ForModelContext(ctx, "gpt-4o")
	assert.Equal(t, "estimator", c.Name())
	assert.Less(t, time.Since(start), 2*time.Second)

	// 加载仍在进行：不阻塞，也不会重复发起
	assert.Equal(t, "estimator", ForModel("gpt-4o-mini").Name())
	assert.Equal(t, int32(1), calls.Load())
}

func TestForModelContext_LoadError(t *testing.T) {
	restore := SetEncodingLoader(func(string) (*tiktoken.Tiktoken, error) {
		return nil, errors.New("offline")
	})
	t.Cleanup(restore)

	c := ForModelContext(context.Background(), "gpt-3.5-turbo")
	assert.Equal(t, "estimator", c.Name())
}
