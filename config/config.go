package config

import (
	"time"

	rediscache "github.com/BaSui01/batchflow/internal/cache"
	"github.com/BaSui01/batchflow/internal/database"
	"github.com/BaSui01/batchflow/llm/batch"
	"github.com/BaSui01/batchflow/llm/cache"
	"github.com/BaSui01/batchflow/llm/factory"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 BatchFlow 的完整配置结构
type Config struct {
	// Batch 批处理模型配置
	Batch BatchConfig `yaml:"batch" env:"BATCH"`

	// Provider LLM 提供商
	Provider ProviderConfig `yaml:"provider" env:"PROVIDER"`

	// Cache 响应缓存
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Redis 缓存后端连接
	Redis rediscache.Config `yaml:"redis" env:"REDIS"`

	// Database SQL 缓存后端连接
	Database database.Config `yaml:"database" env:"DATABASE"`

	// Mongo MongoDB 缓存后端连接
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// BatchConfig 一次批处理共享的模型配置
type BatchConfig struct {
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大输出 Token，0 为 Provider 默认
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 系统指令
	SystemInstruction string `yaml:"system_instruction" env:"SYSTEM_INSTRUCTION"`
	// 每个条目的总尝试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 并发上限
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" env:"MAX_CONCURRENT_REQUESTS"`
	// 每分钟请求数，0 不限
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	// 单次请求超时
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// 退避
	Backoff BackoffConfig `yaml:"backoff" env:"BACKOFF"`
	// 内置校验器: none, not_empty, min_length
	Verifier string `yaml:"verifier" env:"VERIFIER"`
	// 校验器参数（仅 YAML）
	VerifierArgs map[string]any `yaml:"verifier_args" env:"-"`
	// 缓存键策略: item, hash
	KeyStrategy string `yaml:"key_strategy" env:"KEY_STRATEGY"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" env:"INITIAL"`
	Max        time.Duration `yaml:"max" env:"MAX"`
	Multiplier float64       `yaml:"multiplier" env:"MULTIPLIER"`
	Jitter     bool          `yaml:"jitter" env:"JITTER"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	// 名称: openai, openrouter, gemini 或任意 OpenAI 兼容名称（需 base_url）
	Name string `yaml:"name" env:"NAME"`
	// API Key；为空时读取 <NAME>_API_KEY
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// HTTP 客户端超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 提供商特有字段（organization、site_url、app_name、chat_path、headers...）
	Extra map[string]any `yaml:"extra" env:"-"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	// 后端: file, memory, redis, sql, mongo
	Backend string `yaml:"backend" env:"BACKEND"`
	// file 后端目录
	Dir string `yaml:"dir" env:"DIR"`
	// 本地 LRU 容量；对远端后端 > 0 时启用两级缓存
	LocalSize int `yaml:"local_size" env:"LOCAL_SIZE"`
	// 本地 LRU 过期时间，0 不过期
	LocalTTL time.Duration `yaml:"local_ttl" env:"LOCAL_TTL"`
	// Redis 键前缀
	RedisPrefix string `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	// Redis 过期时间，0 不过期
	RedisTTL time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
	// sql 后端是否自动建表
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI        string        `yaml:"uri" env:"URI"`
	Database   string        `yaml:"database" env:"DATABASE"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 明文 gRPC（本地 collector）
	Insecure bool `yaml:"insecure" env:"INSECURE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用 /metrics 监听
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔄 转换
// =============================================================================

// ModelConfig 转换为 batch.ModelConfig（不含校验器，见 Verifier）
func (b BatchConfig) ModelConfig() batch.ModelConfig {
	return batch.ModelConfig{
		Model:                 b.Model,
		Temperature:           b.Temperature,
		MaxTokens:             b.MaxTokens,
		SystemInstruction:     b.SystemInstruction,
		MaxRetries:            b.MaxRetries,
		MaxConcurrentRequests: b.MaxConcurrentRequests,
		RequestsPerMinute:     b.RequestsPerMinute,
		RequestTimeout:        b.RequestTimeout,
		Backoff: batch.BackoffConfig{
			Initial:    b.Backoff.Initial,
			Max:        b.Backoff.Max,
			Multiplier: b.Backoff.Multiplier,
			Jitter:     b.Backoff.Jitter,
		},
		VerifierArgs: b.VerifierArgs,
	}
}

// ResolveModelConfig 转换并装配内置校验器
func (b BatchConfig) ResolveModelConfig() (batch.ModelConfig, error) {
	mc := b.ModelConfig()
	v, err := batch.NamedVerifier(b.Verifier)
	if err != nil {
		return batch.ModelConfig{}, err
	}
	mc.Verifier = v
	return mc, nil
}

// KeyStrategyImpl 返回缓存键策略
func (b BatchConfig) KeyStrategyImpl() cache.KeyStrategy {
	return cache.NewKeyStrategy(b.KeyStrategy)
}

// FactoryConfig 转换为 factory.ProviderConfig
func (p ProviderConfig) FactoryConfig(model string) factory.ProviderConfig {
	return factory.ProviderConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   model,
		Timeout: p.Timeout,
		Extra:   p.Extra,
	}
}

// StoreConfig 转换为 cache.MongoConfig
func (m MongoConfig) StoreConfig() cache.MongoConfig {
	return cache.MongoConfig{URI: m.URI, Database: m.Database, Collection: m.Collection}
}
