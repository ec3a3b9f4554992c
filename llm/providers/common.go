package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/BaSui01/batchflow/llm"
)

// statusClass 状态码到错误码与可重试性的固定映射
var statusClass = map[int]struct {
	code      llm.ErrorCode
	retryable bool
}{
	http.StatusUnauthorized:       {llm.ErrUnauthorized, false},
	http.StatusForbidden:          {llm.ErrForbidden, false},
	http.StatusNotFound:           {llm.ErrModelNotFound, false},
	http.StatusRequestTimeout:     {llm.ErrUpstreamTimeout, true},
	http.StatusTooManyRequests:    {llm.ErrRateLimited, true},
	http.StatusBadGateway:         {llm.ErrUpstreamError, true},
	http.StatusServiceUnavailable: {llm.ErrUpstreamError, true},
	http.StatusGatewayTimeout:     {llm.ErrUpstreamTimeout, true},
	529:                           {llm.ErrModelOverloaded, true}, // 部分厂商的过载状态码
}

// MapHTTPError 把非 2xx 响应映射为 llm.Error。
// 未列出的 5xx 可重试，其余 4xx 不可重试；400/422 再按消息细分。
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	e := &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  status >= 500,
		Provider:   provider,
	}
	if c, ok := statusClass[status]; ok {
		e.Code, e.Retryable = c.code, c.retryable
		return e
	}
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		e.Code = classifyBadRequest(msg)
	}
	return e
}

func classifyBadRequest(msg string) llm.ErrorCode {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "quota"), strings.Contains(lower, "credit"):
		return llm.ErrQuotaExceeded
	case strings.Contains(lower, "context length"), strings.Contains(lower, "context window"),
		strings.Contains(lower, "maximum context"):
		return llm.ErrContextTooLong
	default:
		return llm.ErrInvalidRequest
	}
}

// MapTransportError client.Do 失败（连接、TLS、超时）。一律可重试。
func MapTransportError(err error, provider string) *llm.Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return llm.NewTimeoutError(provider, err)
	}
	return &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   provider,
		Cause:      err,
	}
}

// MapDecodeError 2xx 但响应体无法解析
func MapDecodeError(err error, provider string) *llm.Error {
	return &llm.Error{
		Code:       llm.ErrMalformedResponse,
		Message:    fmt.Sprintf("decode response: %v", err),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   provider,
		Cause:      err,
	}
}

// maxErrorBody 错误响应最多读取的字节数
const maxErrorBody = 64 << 10

// ReadErrorMessage 提取 {"error":{"message","type"}} 形式的错误消息，
// 不是这种格式时返回原始文本。
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response"
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &envelope) != nil || envelope.Error.Message == "" {
		return strings.TrimSpace(string(data))
	}
	if envelope.Error.Type == "" {
		return envelope.Error.Message
	}
	return envelope.Error.Message + " (type: " + envelope.Error.Type + ")"
}

// ChooseModel 请求指定的模型优先，其次是 Provider 配置，最后是内置默认值。
func ChooseModel(req *llm.ChatRequest, configured, fallback string) string {
	switch {
	case req != nil && req.Model != "":
		return req.Model
	case configured != "":
		return configured
	default:
		return fallback
	}
}

// BearerTokenHeaders Authorization: Bearer 认证
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Content-Type", "application/json")
}
