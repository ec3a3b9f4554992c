// =============================================================================
// 📦 测试数据工厂 - LLM 响应与批处理输入
// =============================================================================
package fixtures

import (
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/types"
)

// =============================================================================
// 🎯 ChatResponse 工厂
// =============================================================================

// SimpleResponse 返回简单的文本响应
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-4o-mini",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: types.Message{
					Role:    types.RoleAssistant,
					Content: content,
				},
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		CreatedAt: time.Now(),
	}
}

// ResponseWithUsage 返回带自定义 Token 使用量的响应
func ResponseWithUsage(content string, promptTokens, completionTokens int) *llm.ChatResponse {
	resp := SimpleResponse(content)
	resp.Usage = llm.ChatUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
	return resp
}

// EmptyResponse 没有 choices 的响应
func EmptyResponse(model string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:        "resp-empty",
		Provider:  "mock",
		Model:     model,
		CreatedAt: time.Now(),
	}
}

// =============================================================================
// ⚠️ Provider 错误工厂
// =============================================================================

// RateLimitError 429
func RateLimitError() *llm.Error {
	return &llm.Error{
		Code:       llm.ErrRateLimited,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
		Provider:   "mock",
	}
}

// TimeoutError 上游超时
func TimeoutError() *llm.Error {
	return llm.NewTimeoutError("mock", errors.New("upstream did not answer"))
}

// MalformedRequestError 400
func MalformedRequestError() *llm.Error {
	return &llm.Error{
		Code:       llm.ErrInvalidRequest,
		Message:    "invalid request",
		HTTPStatus: http.StatusBadRequest,
		Provider:   "mock",
	}
}

// UpstreamError 不可重试的上游错误
func UpstreamError() *llm.Error {
	return &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    "upstream failure",
		HTTPStatus: http.StatusInternalServerError,
		Provider:   "mock",
	}
}

// =============================================================================
// 💬 对话工厂
// =============================================================================

// MultiTurnConversation 带 system 的多轮对话
func MultiTurnConversation() []types.Message {
	return []types.Message{
		types.NewSystemMessage("You answer in one sentence."),
		types.NewUserMessage("What is a goroutine?"),
		types.NewAssistantMessage("A lightweight thread managed by the Go runtime."),
		types.NewUserMessage("And a channel?"),
	}
}
