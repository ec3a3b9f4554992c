package openai

import (
	"github.com/BaSui01/batchflow/llm/providers"
	"github.com/BaSui01/batchflow/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com"
	fallbackModel  = "gpt-4o-mini"
)

// OpenAIProvider OpenAI Chat Completions。
// 输出上限以 max_completion_tokens 下发，新模型已不接受 max_tokens。
type OpenAIProvider struct {
	*openaicompat.Provider
	baseURL string
}

// NewOpenAIProvider 创建 OpenAI Provider
func NewOpenAIProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	var headers map[string]string
	if cfg.Organization != "" {
		headers = map[string]string{"OpenAI-Organization": cfg.Organization}
	}
	return &OpenAIProvider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:           "openai",
			APIKey:                 cfg.APIKey,
			BaseURL:                cfg.BaseURL,
			DefaultModel:           cfg.Model,
			FallbackModel:          fallbackModel,
			Timeout:                cfg.Timeout,
			UseMaxCompletionTokens: true,
			Headers:                headers,
		}, logger),
		baseURL: cfg.BaseURL,
	}
}

// BaseURL 实际使用的 API 地址
func (p *OpenAIProvider) BaseURL() string { return p.baseURL }
