// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "gpt-4o-mini", cfg.Batch.Model)
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, CacheBackendFile, cfg.Cache.Backend)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "batchflow.yaml")

	yamlContent := `
batch:
  model: "gemini-1.5-flash"
  temperature: 0.2
  max_tokens: 512
  max_retries: 4
  max_concurrent_requests: 16
  requests_per_minute: 120
  request_timeout: 45s
  backoff:
    initial: 500ms
    max: 10s
    multiplier: 3
    jitter: false
  verifier: min_length
  verifier_args:
    min_length: 20
  key_strategy: hash

provider:
  name: gemini
  timeout: 90s
  extra:
    chat_path: /v1beta/chat/completions

cache:
  backend: redis
  local_size: 1000
  local_ttl: 5m
  redis_ttl: 24h

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "json"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, "gemini-1.5-flash", cfg.Batch.Model)
	assert.Equal(t, 0.2, cfg.Batch.Temperature)
	assert.Equal(t, 512, cfg.Batch.MaxTokens)
	assert.Equal(t, 4, cfg.Batch.MaxRetries)
	assert.Equal(t, 16, cfg.Batch.MaxConcurrentRequests)
	assert.Equal(t, 120, cfg.Batch.RequestsPerMinute)
	assert.Equal(t, 45*time.Second, cfg.Batch.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Batch.Backoff.Initial)
	assert.Equal(t, 10*time.Second, cfg.Batch.Backoff.Max)
	assert.Equal(t, 3.0, cfg.Batch.Backoff.Multiplier)
	assert.False(t, cfg.Batch.Backoff.Jitter)
	assert.Equal(t, "min_length", cfg.Batch.Verifier)
	assert.Equal(t, 20, cfg.Batch.VerifierArgs["min_length"])
	assert.Equal(t, "hash", cfg.Batch.KeyStrategy)

	assert.Equal(t, "gemini", cfg.Provider.Name)
	assert.Equal(t, 90*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "/v1beta/chat/completions", cfg.Provider.Extra["chat_path"])

	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 1000, cfg.Cache.LocalSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.LocalTTL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.RedisTTL)
	// 未出现在 YAML 中的字段保持默认值
	assert.Equal(t, ".batchflow-cache", cfg.Cache.Dir)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"BATCHFLOW_BATCH_MODEL":                  "gpt-4-turbo",
		"BATCHFLOW_BATCH_TEMPERATURE":            "0.9",
		"BATCHFLOW_BATCH_MAX_RETRIES":            "3",
		"BATCHFLOW_BATCH_REQUEST_TIMEOUT":        "15s",
		"BATCHFLOW_BATCH_BACKOFF_INITIAL":        "250ms",
		"BATCHFLOW_BATCH_BACKOFF_JITTER":         "false",
		"BATCHFLOW_PROVIDER_NAME":                "openrouter",
		"BATCHFLOW_PROVIDER_API_KEY":             "sk-test",
		"BATCHFLOW_CACHE_BACKEND":                "sql",
		"BATCHFLOW_DATABASE_DSN":                 "file::memory:",
		"BATCHFLOW_DATABASE_POOL_MAX_OPEN_CONNS": "7",
		"BATCHFLOW_REDIS_ADDR":                   "env-redis:6379",
		"BATCHFLOW_LOG_LEVEL":                    "warn",
		"BATCHFLOW_LOG_OUTPUT_PATHS":             "stderr, /tmp/batchflow.log",
		"BATCHFLOW_METRICS_ENABLED":              "true",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", cfg.Batch.Model)
	assert.Equal(t, 0.9, cfg.Batch.Temperature)
	assert.Equal(t, 3, cfg.Batch.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.Batch.RequestTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.Backoff.Initial)
	assert.False(t, cfg.Batch.Backoff.Jitter)
	assert.Equal(t, "openrouter", cfg.Provider.Name)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, CacheBackendSQL, cfg.Cache.Backend)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.Database.Pool.MaxOpenConns)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"stderr", "/tmp/batchflow.log"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "batchflow.yaml")
	yamlContent := `
batch:
  model: "yaml-model"
  max_retries: 2
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	// 环境变量应该覆盖 YAML
	t.Setenv("BATCHFLOW_BATCH_MAX_RETRIES", "6")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Batch.MaxRetries)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "yaml-model", cfg.Batch.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_BATCH_MODEL", "custom-prefix-model")
	t.Setenv("BATCHFLOW_BATCH_MODEL", "ignored")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-prefix-model", cfg.Batch.Model)
}

func TestLoader_SkipsYAMLOnlyFields(t *testing.T) {
	// env:"-" 的字段不会从环境变量读取
	t.Setenv("BATCHFLOW_BATCH_VERIFIER_ARGS", "min_length=5")
	t.Setenv("BATCHFLOW_PROVIDER_EXTRA", "x")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Batch.VerifierArgs)
	assert.Nil(t, cfg.Provider.Extra)
}

func TestLoader_WithValidator(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "batchflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("batch:\n  max_retries: 0\n"), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "max_retries")
}

func TestLoader_FileNotFound(t *testing.T) {
	// 文件不存在时使用默认值
	cfg, err := NewLoader().
		WithConfigPath("/nonexistent/path/batchflow.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Batch, cfg.Batch)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("batch: [unclosed"), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("BATCHFLOW_BATCH_MAX_RETRIES", "many")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCHFLOW_BATCH_MAX_RETRIES")
}

func TestMustLoad_Panics(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(":::"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
	assert.NotPanics(t, func() { MustLoad("") })
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BATCHFLOW_CACHE_DIR", "/var/cache/batchflow")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/batchflow", cfg.Cache.Dir)
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty model", mutate: func(c *Config) { c.Batch.Model = "" }, wantErr: "model"},
		{name: "temperature", mutate: func(c *Config) { c.Batch.Temperature = 3 }, wantErr: "temperature"},
		{name: "concurrency", mutate: func(c *Config) { c.Batch.MaxConcurrentRequests = 0 }, wantErr: "max_concurrent_requests"},
		{name: "verifier", mutate: func(c *Config) { c.Batch.Verifier = "regex" }, wantErr: "verifier"},
		{name: "key strategy", mutate: func(c *Config) { c.Batch.KeyStrategy = "random" }, wantErr: "key_strategy"},
		{name: "provider", mutate: func(c *Config) { c.Provider.Name = " " }, wantErr: "provider name"},
		{name: "backend", mutate: func(c *Config) { c.Cache.Backend = "s3" }, wantErr: "cache backend"},
		{name: "file dir", mutate: func(c *Config) { c.Cache.Dir = "" }, wantErr: "cache dir"},
		{name: "sql dsn", mutate: func(c *Config) { c.Cache.Backend = CacheBackendSQL; c.Database.DSN = "" }, wantErr: "database dsn"},
		{name: "mongo uri", mutate: func(c *Config) { c.Cache.Backend = CacheBackendMongo }, wantErr: "mongo uri"},
		{name: "local size", mutate: func(c *Config) { c.Cache.LocalSize = -1 }, wantErr: "local_size"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log level"},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log format"},
		{name: "sample rate", mutate: func(c *Config) { c.Telemetry.SampleRate = 1.5 }, wantErr: "sample_rate"},
		{name: "metrics addr", mutate: func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, wantErr: "metrics addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Name = ""
	cfg.Log.Format = "xml"
	cfg.Cache.Backend = "s3"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider name")
	assert.Contains(t, err.Error(), "log format")
	assert.Contains(t, err.Error(), "cache backend")
}
