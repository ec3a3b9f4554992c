package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/llm/providers"
	"github.com/BaSui01/batchflow/llm/providers/openaicompat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenRouterProvider_Defaults(t *testing.T) {
	p := NewOpenRouterProvider(providers.OpenRouterConfig{}, zap.NewNop())
	assert.Equal(t, "openrouter", p.Name())
	assert.Equal(t, "openai/gpt-4o-mini", p.BuildRequestBody(&llm.ChatRequest{}).Model)
}

func TestOpenRouterProvider_Completion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://example.com", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "batchflow", r.Header.Get("X-Title"))

		var body openaicompat.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "anthropic/claude-3.5-haiku", body.Model)
		assert.Equal(t, 256, body.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openaicompat.Response{
			Model: body.Model,
			Choices: []openaicompat.Choice{
				{FinishReason: "stop", Message: openaicompat.Message{Role: "assistant", Content: "routed"}},
			},
		})
	}))
	t.Cleanup(server.Close)

	p := NewOpenRouterProvider(providers.OpenRouterConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "or-key", BaseURL: server.URL},
		SiteURL:            "https://example.com",
		AppName:            "batchflow",
	}, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:     "anthropic/claude-3.5-haiku",
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", resp.Provider)
	assert.Equal(t, "routed", resp.Choices[0].Message.Content)
}
