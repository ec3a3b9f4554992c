package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/batchflow/types"
)

func TestDefaultModelConfig(t *testing.T) {
	cfg := DefaultModelConfig("gpt-4o-mini")

	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.MaxConcurrentRequests)
	assert.Equal(t, "You are a helpful AI assistant.", cfg.SystemInstruction)
	assert.Equal(t, time.Second, cfg.Backoff.Initial)
	assert.Equal(t, 30*time.Second, cfg.Backoff.Max)
	assert.Equal(t, 2.0, cfg.Backoff.Multiplier)
	assert.True(t, cfg.Backoff.Jitter)
	assert.NoError(t, cfg.Validate())
}

func TestModelConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelConfig)
		field  string
	}{
		{"empty model", func(c *ModelConfig) { c.Model = "" }, "model"},
		{"temperature too high", func(c *ModelConfig) { c.Temperature = 2.5 }, "temperature"},
		{"negative temperature", func(c *ModelConfig) { c.Temperature = -0.1 }, "temperature"},
		{"negative max tokens", func(c *ModelConfig) { c.MaxTokens = -1 }, "max_tokens"},
		{"zero retries", func(c *ModelConfig) { c.MaxRetries = 0 }, "max_retries"},
		{"zero concurrency", func(c *ModelConfig) { c.MaxConcurrentRequests = 0 }, "max_concurrent_requests"},
		{"negative rpm", func(c *ModelConfig) { c.RequestsPerMinute = -5 }, "requests_per_minute"},
		{"negative timeout", func(c *ModelConfig) { c.RequestTimeout = -time.Second }, "request_timeout"},
		{"negative backoff", func(c *ModelConfig) { c.Backoff.Initial = -time.Millisecond }, "backoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultModelConfig("m")
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var ve *types.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestModelConfig_ValidateCollectsAll(t *testing.T) {
	cfg := ModelConfig{}
	err := cfg.Validate()
	require.Error(t, err)

	var errs types.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 3) // model, max_retries, max_concurrent_requests
}

func TestModelConfig_SystemInstructionFallback(t *testing.T) {
	cfg := DefaultModelConfig("m")
	cfg.SystemInstruction = ""
	assert.Equal(t, DefaultSystemInstruction, cfg.systemInstruction())

	cfg.SystemInstruction = "Be terse."
	assert.Equal(t, "Be terse.", cfg.systemInstruction())
}

func TestModelConfig_RetryPolicy(t *testing.T) {
	cfg := DefaultModelConfig("m")
	cfg.MaxRetries = 4
	cfg.Backoff = BackoffConfig{Initial: 10 * time.Millisecond, Max: 80 * time.Millisecond, Multiplier: 3}

	p := cfg.retryPolicy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, p.Delay(1))
	assert.Equal(t, 30*time.Millisecond, p.Delay(2))
	assert.Equal(t, 80*time.Millisecond, p.Delay(3))
}
