package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BaSui01/batchflow/llm/batch"
)

// 受支持的枚举值
var (
	cacheBackends = []string{CacheBackendFile, CacheBackendMemory, CacheBackendRedis, CacheBackendSQL, CacheBackendMongo}
	logFormats    = []string{"json", "console"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	keyStrategies = []string{"item", "hash"}
)

// 缓存后端名称
const (
	CacheBackendFile   = "file"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendSQL    = "sql"
	CacheBackendMongo  = "mongo"
)

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 批处理参数与 batch.ModelConfig 的校验保持一致
	if err := c.Batch.ModelConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := batch.NamedVerifier(c.Batch.Verifier); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Batch.KeyStrategy != "" && !slices.Contains(keyStrategies, c.Batch.KeyStrategy) {
		errs = append(errs, fmt.Sprintf("unknown key_strategy %q", c.Batch.KeyStrategy))
	}

	if strings.TrimSpace(c.Provider.Name) == "" {
		errs = append(errs, "provider name is required")
	}

	switch {
	case !slices.Contains(cacheBackends, c.Cache.Backend):
		errs = append(errs, fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	case c.Cache.Backend == CacheBackendFile && c.Cache.Dir == "":
		errs = append(errs, "cache dir is required for the file backend")
	case c.Cache.Backend == CacheBackendSQL && c.Database.DSN == "":
		errs = append(errs, "database dsn is required for the sql backend")
	case c.Cache.Backend == CacheBackendMongo && c.Mongo.URI == "":
		errs = append(errs, "mongo uri is required for the mongo backend")
	}
	if c.Cache.LocalSize < 0 {
		errs = append(errs, "cache local_size must not be negative")
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log format %q", c.Log.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
