package llm

import (
	"context"
	"errors"
	"net"
)

// 统一的 LLM 错误码，用于对齐 HTTP 状态、可重试性与退避策略。
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // 参数/格式错误
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // 未授权或密钥失效
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"            // 权限或内容策略拒绝
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // 上游或本地限流
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"       // 额度/配额用尽
	ErrModelNotFound       ErrorCode = "LLM_MODEL_NOT_FOUND"      // 模型不存在或无权访问
	ErrContextTooLong      ErrorCode = "LLM_CONTEXT_TOO_LONG"     // 输入超出上下文窗口
	ErrContentFiltered     ErrorCode = "LLM_CONTENT_FILTERED"     // 命中内容安全
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"     // 模型过载
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // 上游超时
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // 上游 5xx/网络错误
	ErrMalformedResponse   ErrorCode = "LLM_MALFORMED_RESPONSE"   // 响应无法解析或没有 choices
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // Provider 不可用
)

// Error Provider 返回的已分类错误
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return e.Provider + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// FailureClass 是 Provider 失败的粗粒度分类，决定 worker 是否退避。
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureRateLimit
	FailureTimeout
	FailureMalformed
)

func (c FailureClass) String() string {
	switch c {
	case FailureRateLimit:
		return "rate_limit"
	case FailureTimeout:
		return "timeout"
	case FailureMalformed:
		return "malformed_request"
	default:
		return "other"
	}
}

// Classify maps any error returned by a Provider to a FailureClass.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureOther
	}
	var le *Error
	if errors.As(err, &le) {
		switch le.Code {
		case ErrRateLimited:
			return FailureRateLimit
		case ErrUpstreamTimeout:
			return FailureTimeout
		case ErrInvalidRequest, ErrContextTooLong:
			return FailureMalformed
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	return FailureOther
}

// IsTransient reports whether a retry after a backoff delay is likely to help:
// rate limits, timeouts and provider errors flagged Retryable (5xx, overload).
func IsTransient(err error) bool {
	switch Classify(err) {
	case FailureRateLimit, FailureTimeout:
		return true
	case FailureMalformed:
		return false
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// NewTimeoutError wraps a deadline hit while waiting on provider.
func NewTimeoutError(provider string, cause error) *Error {
	return &Error{
		Code:      ErrUpstreamTimeout,
		Message:   "request timed out",
		Retryable: true,
		Provider:  provider,
		Cause:     cause,
	}
}
