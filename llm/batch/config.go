package batch

import (
	"time"

	"github.com/BaSui01/batchflow/llm/retry"
	"github.com/BaSui01/batchflow/types"
)

// 默认值
const (
	DefaultSystemInstruction     = "You are a helpful AI assistant."
	DefaultTemperature           = 0.7
	DefaultMaxRetries            = 10
	DefaultMaxConcurrentRequests = 5
)

// BackoffConfig 瞬时失败（限流/超时/可重试的上游错误）后的退避曲线
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" json:"initial"`
	Max        time.Duration `yaml:"max" json:"max"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	Jitter     bool          `yaml:"jitter" json:"jitter"`
}

// DefaultBackoffConfig 1s 起步，倍增，封顶 30s，±25% 抖动
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// ModelConfig 单个批次共享的模型配置。运行期间只读。
type ModelConfig struct {
	// 模型名称
	Model string

	// 采样温度，[0, 2]
	Temperature float64

	// 最大输出 token，0 表示使用 Provider 默认值
	MaxTokens int

	// 系统指令，空时使用 DefaultSystemInstruction
	SystemInstruction string

	// 每个条目的总尝试次数（含首次），>= 1
	MaxRetries int

	// 同时在途的 Provider 请求上限，>= 1
	MaxConcurrentRequests int

	// 每分钟请求数上限，0 表示不限
	RequestsPerMinute int

	// 单次请求超时，0 表示不设
	RequestTimeout time.Duration

	Backoff BackoffConfig

	// 可选的响应校验器及其附加参数
	Verifier     Verifier
	VerifierArgs VerifierArgs
}

// DefaultModelConfig 返回带默认值的配置
func DefaultModelConfig(model string) ModelConfig {
	return ModelConfig{
		Model:                 model,
		Temperature:           DefaultTemperature,
		SystemInstruction:     DefaultSystemInstruction,
		MaxRetries:            DefaultMaxRetries,
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		Backoff:               DefaultBackoffConfig(),
	}
}

// Validate 收集所有配置错误
func (c ModelConfig) Validate() error {
	var errs types.ValidationErrors
	if c.Model == "" {
		errs = append(errs, types.NewValidationError("model", "must not be empty"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, types.NewValidationError("temperature", "must be within [0, 2], got %v", c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, types.NewValidationError("max_tokens", "must not be negative, got %d", c.MaxTokens))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, types.NewValidationError("max_retries", "must be at least 1, got %d", c.MaxRetries))
	}
	if c.MaxConcurrentRequests < 1 {
		errs = append(errs, types.NewValidationError("max_concurrent_requests", "must be at least 1, got %d", c.MaxConcurrentRequests))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, types.NewValidationError("requests_per_minute", "must not be negative, got %d", c.RequestsPerMinute))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, types.NewValidationError("request_timeout", "must not be negative, got %s", c.RequestTimeout))
	}
	if c.Backoff.Initial < 0 || c.Backoff.Max < 0 {
		errs = append(errs, types.NewValidationError("backoff", "delays must not be negative"))
	}
	return errs.Err()
}

// systemInstruction 返回生效的系统指令
func (c ModelConfig) systemInstruction() string {
	if c.SystemInstruction == "" {
		return DefaultSystemInstruction
	}
	return c.SystemInstruction
}

// retryPolicy 把配置转换为 retry 包的策略；零值字段由 retry 补默认值
func (c ModelConfig) retryPolicy() *retry.RetryPolicy {
	return &retry.RetryPolicy{
		MaxAttempts:  c.MaxRetries,
		InitialDelay: c.Backoff.Initial,
		MaxDelay:     c.Backoff.Max,
		Multiplier:   c.Backoff.Multiplier,
		Jitter:       c.Backoff.Jitter,
	}
}
