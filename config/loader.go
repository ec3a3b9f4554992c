package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量默认前缀
const DefaultEnvPrefix = "BATCHFLOW"

// Loader 按 默认值 → YAML 文件 → 环境变量 的顺序组装 Config
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("batchflow.yaml").
//	    WithValidator(func(c *config.Config) error { return c.Validate() }).
//	    Load()
type Loader struct {
	path       string
	prefix     string
	lookup     func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 创建加载器，默认前缀 BATCHFLOW
func NewLoader() *Loader {
	return &Loader{prefix: DefaultEnvPrefix, lookup: os.LookupEnv}
}

// WithConfigPath 指定 YAML 文件；文件不存在时跳过
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix 替换环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.prefix = prefix
	return l
}

// WithValidator 追加加载完成后运行的校验
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 组装配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := l.readFile(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from file: %w", err)
	}
	if err := overlayEnv(cfg, l.prefix, l.lookup); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	for _, validate := range l.validators {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) readFile(cfg *Config) error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// MustLoad 加载 path（可为空），失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 只使用默认值与环境变量
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}
