package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/batchflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func userMessages(text string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: text}}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{ProviderName: "local"}, nil)
	assert.Equal(t, "local", p.Name())
	assert.Equal(t, defaultChatPath, p.cfg.ChatPath)
	assert.Equal(t, defaultModelsPath, p.cfg.ModelsPath)
	assert.Equal(t, defaultTimeout, p.client.Timeout)

	p = New(Config{ProviderName: "x", ChatPath: "/chat", ModelsPath: "/models", Timeout: 5 * time.Second}, zap.NewNop())
	assert.Equal(t, "/chat", p.cfg.ChatPath)
	assert.Equal(t, "/models", p.cfg.ModelsPath)
	assert.Equal(t, 5*time.Second, p.client.Timeout)
}

func TestBuildRequestBody(t *testing.T) {
	req := &llm.ChatRequest{Messages: userMessages("Hi"), MaxTokens: 128}

	body := New(Config{DefaultModel: "m1"}, nil).BuildRequestBody(req)
	assert.Equal(t, "m1", body.Model)
	assert.Equal(t, 128, body.MaxTokens)
	assert.Zero(t, body.MaxCompletionTokens)
	assert.Equal(t, []Message{{Role: "user", Content: "Hi"}}, body.Messages)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"temperature":0`)
	assert.NotContains(t, string(raw), "max_completion_tokens")

	body = New(Config{FallbackModel: "fb", UseMaxCompletionTokens: true}, nil).BuildRequestBody(req)
	assert.Equal(t, "fb", body.Model)
	assert.Zero(t, body.MaxTokens)
	assert.Equal(t, 128, body.MaxCompletionTokens)
}

func TestBuildRequestBody_Hook(t *testing.T) {
	p := New(Config{
		RequestHook: func(req *llm.ChatRequest, body *Request) {
			body.Model = "hooked-" + req.Model
		},
	}, nil)
	assert.Equal(t, "hooked-x", p.BuildRequestBody(&llm.ChatRequest{Model: "x"}).Model)
}

func TestProvider_Completion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "batch", r.Header.Get("X-Team"))

		var body Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		assert.InDelta(t, 0.7, body.Temperature, 1e-6)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{
			ID:      "resp-1",
			Model:   "gpt-test",
			Created: 1700000000,
			Choices: []Choice{{FinishReason: "stop", Message: Message{Role: "assistant", Content: "Hello!"}}},
			Usage:   &Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		})
	}))
	t.Cleanup(server.Close)

	p := New(Config{
		ProviderName: "test",
		APIKey:       "test-key",
		BaseURL:      server.URL + "/",
		Headers:      map[string]string{"X-Team": "batch"},
	}, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:       "gpt-test",
		Messages:    userMessages("Hi"),
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, "test", resp.Provider)
	assert.Equal(t, llm.ChatUsage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}, resp.Usage)
	assert.Equal(t, int64(1700000000), resp.CreatedAt.Unix())

	text, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, "Hello!", text)
	assert.Equal(t, "stop", resp.FinishReason())
}

func TestProvider_Completion_HTTPError(t *testing.T) {
	tests := []struct {
		status int
		body   string
		code   llm.ErrorCode
		class  llm.FailureClass
	}{
		{http.StatusUnauthorized, `{"error":{"message":"invalid key","type":"auth"}}`, llm.ErrUnauthorized, llm.FailureOther},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ErrRateLimited, llm.FailureRateLimit},
		{http.StatusBadRequest, `{"error":{"message":"messages must be an array"}}`, llm.ErrInvalidRequest, llm.FailureMalformed},
		{http.StatusGatewayTimeout, `upstream timed out`, llm.ErrUpstreamTimeout, llm.FailureTimeout},
		{http.StatusInternalServerError, `{"error":{"message":"oops"}}`, llm.ErrUpstreamError, llm.FailureOther},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			t.Cleanup(server.Close)

			p := New(Config{ProviderName: "test", BaseURL: server.URL}, nil)
			_, err := p.Completion(context.Background(), &llm.ChatRequest{Messages: userMessages("Hi")})

			var le *llm.Error
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.code, le.Code)
			assert.Equal(t, tt.status, le.HTTPStatus)
			assert.Equal(t, "test", le.Provider)
			assert.Equal(t, tt.class, llm.Classify(err))
		})
	}
}

func TestProvider_Completion_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "test", BaseURL: server.URL}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{Messages: userMessages("Hi")})

	var le *llm.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, llm.ErrMalformedResponse, le.Code)
	assert.True(t, llm.IsTransient(err))
}

func TestProvider_Completion_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "test", BaseURL: server.URL}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: userMessages("Hi"),
		Timeout:  50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, llm.FailureTimeout, llm.Classify(err))
	assert.True(t, llm.IsTransient(err))
}

func TestProvider_Completion_NoMessages(t *testing.T) {
	p := New(Config{ProviderName: "test"}, nil)
	for _, req := range []*llm.ChatRequest{nil, {}} {
		_, err := p.Completion(context.Background(), req)
		assert.Equal(t, llm.FailureMalformed, llm.Classify(err))
	}
}

func TestProvider_HealthCheck(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(status)
		fmt.Fprint(w, `{"data":[]}`)
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "test", BaseURL: server.URL, APIKey: "k"}, nil)

	hs, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, hs.Healthy)

	status = http.StatusUnauthorized
	hs, err = p.HealthCheck(context.Background())
	var le *llm.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, llm.ErrUnauthorized, le.Code)
	assert.False(t, hs.Healthy)
}

func TestResponse_ToChat(t *testing.T) {
	resp := Response{Model: "m", Choices: []Choice{{Index: 1, Message: Message{Role: "tool", Content: "x"}}}}.toChat("p")
	assert.Equal(t, llm.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, 1, resp.Choices[0].Index)
	assert.True(t, resp.CreatedAt.IsZero())
	assert.Zero(t, resp.Usage)
}
