package openrouter

import (
	"github.com/BaSui01/batchflow/llm/providers"
	"github.com/BaSui01/batchflow/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://openrouter.ai"
	fallbackModel  = "openai/gpt-4o-mini"

	chatPath   = "/api/v1/chat/completions"
	modelsPath = "/api/v1/models"
)

// OpenRouterProvider 通过 OpenRouter 网关访问各家模型，模型名带厂商前缀（openai/gpt-4o）。
type OpenRouterProvider struct {
	*openaicompat.Provider
}

// NewOpenRouterProvider 创建 OpenRouter Provider。
// SiteURL / AppName 以 HTTP-Referer / X-Title 下发，用于 OpenRouter 的应用归因。
func NewOpenRouterProvider(cfg providers.OpenRouterConfig, logger *zap.Logger) *OpenRouterProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	headers := map[string]string{}
	if cfg.SiteURL != "" {
		headers["HTTP-Referer"] = cfg.SiteURL
	}
	if cfg.AppName != "" {
		headers["X-Title"] = cfg.AppName
	}
	return &OpenRouterProvider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "openrouter",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: fallbackModel,
			Timeout:       cfg.Timeout,
			ChatPath:      chatPath,
			ModelsPath:    modelsPath,
			Headers:       headers,
		}, logger),
	}
}
