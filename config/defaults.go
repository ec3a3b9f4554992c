// =============================================================================
// 📦 BatchFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	rediscache "github.com/BaSui01/batchflow/internal/cache"
	"github.com/BaSui01/batchflow/internal/database"
	"github.com/BaSui01/batchflow/llm/batch"
	"github.com/BaSui01/batchflow/llm/cache"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Batch:     DefaultBatchConfig(),
		Provider:  DefaultProviderConfig(),
		Cache:     DefaultCacheConfig(),
		Redis:     rediscache.DefaultConfig(),
		Database:  DefaultDatabaseConfig(),
		Mongo:     DefaultMongoConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultBatchConfig 返回默认批处理配置
func DefaultBatchConfig() BatchConfig {
	bc := batch.DefaultBackoffConfig()
	return BatchConfig{
		Model:                 "gpt-4o-mini",
		Temperature:           batch.DefaultTemperature,
		SystemInstruction:     batch.DefaultSystemInstruction,
		MaxRetries:            batch.DefaultMaxRetries,
		MaxConcurrentRequests: batch.DefaultMaxConcurrentRequests,
		RequestTimeout:        2 * time.Minute,
		Backoff: BackoffConfig{
			Initial:    bc.Initial,
			Max:        bc.Max,
			Multiplier: bc.Multiplier,
			Jitter:     bc.Jitter,
		},
		Verifier:    "none",
		KeyStrategy: "item",
	}
}

// DefaultProviderConfig 返回默认 Provider 配置
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Name:    "openai",
		Timeout: 2 * time.Minute,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:     CacheBackendFile,
		Dir:         ".batchflow-cache",
		LocalSize:   0,
		RedisPrefix: cache.DefaultRedisPrefix,
		AutoMigrate: true,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() database.Config {
	return database.Config{
		Driver: database.DriverSQLite,
		DSN:    "batchflow.db",
		Pool:   database.DefaultPoolConfig(),
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "",
		Database:   "batchflow",
		Collection: "cache_entries",
		Timeout:    10 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "batchflow",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Addr:      ":9091",
		Namespace: "batchflow",
	}
}
