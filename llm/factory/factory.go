package factory

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/llm/providers"
	"github.com/BaSui01/batchflow/llm/providers/gemini"
	"github.com/BaSui01/batchflow/llm/providers/openai"
	"github.com/BaSui01/batchflow/llm/providers/openaicompat"
	"github.com/BaSui01/batchflow/llm/providers/openrouter"
	"go.uber.org/zap"
)

// ProviderConfig 与厂商无关的扁平配置，厂商特有字段放在 Extra。
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (c ProviderConfig) base() providers.BaseProviderConfig {
	return providers.BaseProviderConfig{APIKey: c.APIKey, BaseURL: c.BaseURL, Model: c.Model, Timeout: c.Timeout}
}

func (c ProviderConfig) extraString(key string) string {
	v, _ := c.Extra[key].(string)
	return v
}

// extraHeaders Extra["headers"] 里的字符串值，YAML 解出来是 map[string]any
func (c ProviderConfig) extraHeaders() map[string]string {
	raw, ok := c.Extra["headers"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

type builder func(cfg ProviderConfig, logger *zap.Logger) llm.Provider

var builtins = map[string]builder{
	"openai": func(cfg ProviderConfig, logger *zap.Logger) llm.Provider {
		return openai.NewOpenAIProvider(providers.OpenAIConfig{
			BaseProviderConfig: cfg.base(),
			Organization:       cfg.extraString("organization"),
		}, logger)
	},
	"openrouter": func(cfg ProviderConfig, logger *zap.Logger) llm.Provider {
		return openrouter.NewOpenRouterProvider(providers.OpenRouterConfig{
			BaseProviderConfig: cfg.base(),
			SiteURL:            cfg.extraString("site_url"),
			AppName:            cfg.extraString("app_name"),
		}, logger)
	},
	"gemini": func(cfg ProviderConfig, logger *zap.Logger) llm.Provider {
		return gemini.NewGeminiProvider(providers.GeminiConfig{BaseProviderConfig: cfg.base()}, logger)
	},
}

// APIKeyEnv 未配置 api_key 时读取的环境变量名，例如 OPENROUTER_API_KEY
func APIKeyEnv(name string) string {
	n := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	return n + "_API_KEY"
}

// NewProviderFromConfig 按名称构建 Provider。
// 内置 Provider 必须有 API Key；内置名称之外的任意名称只要给出 base_url，
// 就按通用 OpenAI 兼容端点处理（vLLM、Ollama 等），API Key 可以为空。
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv(name))
	}

	if build, ok := builtins[name]; ok {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("provider %q: api_key is required (set it in config or %s)", name, APIKeyEnv(name))
		}
		return build(cfg, logger), nil
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider %q: not one of %v, and base_url is required for an OpenAI-compatible endpoint",
			name, SupportedProviders())
	}

	oc := openaicompat.Config{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
		ChatPath:     cfg.extraString("chat_path"),
		ModelsPath:   cfg.extraString("models_path"),
		Headers:      cfg.extraHeaders(),
	}
	oc.UseMaxCompletionTokens, _ = cfg.Extra["max_completion_tokens"].(bool)

	logger.Info("using OpenAI-compatible endpoint",
		zap.String("provider", name),
		zap.String("base_url", cfg.BaseURL))
	return openaicompat.New(oc, logger), nil
}

// SupportedProviders 内置 Provider 名称（有序）
func SupportedProviders() []string {
	return slices.Sorted(maps.Keys(builtins))
}
