package batch

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/batchflow/types"
)

// ErrVerificationRejected 校验器拒绝了响应
var ErrVerificationRejected = errors.New("verification rejected")

// ResponseData 交给校验器并写入缓存的响应数据
type ResponseData struct {
	ResponseText string           `json:"response_text"`
	Model        string           `json:"model,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Usage        types.TokenUsage `json:"usage,omitempty"`
}

// VerifierArgs 原样传给校验器的附加参数
type VerifierArgs map[string]any

// Int 读取整数参数，兼容 JSON/YAML 解码得到的 float64
func (a VerifierArgs) Int(key string) (int, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Verifier 响应校验能力。实现必须可被多个 goroutine 并发调用。
type Verifier interface {
	Accepts(itemID string, resp ResponseData, original Content, args VerifierArgs) bool
}

// VerifierFunc 函数适配器
type VerifierFunc func(itemID string, resp ResponseData, original Content, args VerifierArgs) bool

// Accepts 实现 Verifier
func (f VerifierFunc) Accepts(itemID string, resp ResponseData, original Content, args VerifierArgs) bool {
	return f(itemID, resp, original, args)
}

// verify 调用校验器；panic 被恢复并视为拒绝
func verify(v Verifier, itemID string, resp ResponseData, original Content, args VerifierArgs) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: verifier panicked: %v", ErrVerificationRejected, r)
		}
	}()
	if !v.Accepts(itemID, resp, original, args) {
		return ErrVerificationRejected
	}
	return nil
}

// MinLength 要求去除首尾空白后至少 n 个字符；
// args 中的 "min_length" 优先于 n。
func MinLength(n int) Verifier {
	return VerifierFunc(func(_ string, resp ResponseData, _ Content, args VerifierArgs) bool {
		limit := n
		if v, ok := args.Int("min_length"); ok {
			limit = v
		}
		return utf8.RuneCountInString(strings.TrimSpace(resp.ResponseText)) >= limit
	})
}

// NotEmpty 拒绝空白响应
func NotEmpty() Verifier {
	return VerifierFunc(func(_ string, resp ResponseData, _ Content, _ VerifierArgs) bool {
		return strings.TrimSpace(resp.ResponseText) != ""
	})
}

// NamedVerifier 按名称返回内置校验器，供配置文件与命令行使用。
// 空名称或 "none" 返回 nil（不校验）。
func NamedVerifier(name string) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "not_empty", "non_empty":
		return NotEmpty(), nil
	case "min_length":
		// 长度来自 verifier_args.min_length
		return MinLength(1), nil
	default:
		return nil, types.NewValidationError("verifier", "unknown verifier %q (want none, not_empty or min_length)", name)
	}
}
