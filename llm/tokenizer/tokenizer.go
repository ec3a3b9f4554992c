package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/BaSui01/batchflow/types"
	"github.com/pkoukk/tiktoken-go"
)

// Counter 统计消息列表的 token 数（含每条消息的角色开销）。
type Counter interface {
	CountTokens(text string) int
	CountMessages(msgs []types.Message) int
	Name() string
}

const (
	perMessageOverhead = 4
	replyPrimingTokens = 3
)

// 已知模型前缀到 tiktoken 编码的映射，按前缀长度从长到短匹配
var encodingPrefixes = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o-mini", "o200k_base"},
	{"gpt-4o", "o200k_base"},
	{"gpt-4.1", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"o4", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
}

// EncodingForModel 返回模型对应的 tiktoken 编码，未知模型返回空串。
// OpenRouter 风格的 "openai/gpt-4o" 会去掉厂商前缀后匹配。
func EncodingForModel(model string) string {
	m := strings.ToLower(model)
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	for _, e := range encodingPrefixes {
		if strings.HasPrefix(m, e.prefix) {
			return e.encoding
		}
	}
	return ""
}

// encodingLoad 一次编码表加载。tiktoken 首次使用时会联网下载 BPE 数据，
// 下载在后台 goroutine 中进行，调用方只按自己的 ctx 等待。
type encodingLoad struct {
	done chan struct{}
	enc  *tiktoken.Tiktoken
	err  error
}

var (
	encMu        sync.Mutex
	encLoads     = map[string]*encodingLoad{}
	loadEncoding = tiktoken.GetEncoding
)

// SetEncodingLoader 替换编码表加载函数并清空已加载的编码，返回恢复函数。
// 主要用于离线环境或测试。
func SetEncodingLoader(fn func(encoding string) (*tiktoken.Tiktoken, error)) (restore func()) {
	encMu.Lock()
	prev := loadEncoding
	loadEncoding = fn
	encLoads = map[string]*encodingLoad{}
	encMu.Unlock()

	return func() {
		encMu.Lock()
		loadEncoding = prev
		encLoads = map[string]*encodingLoad{}
		encMu.Unlock()
	}
}

func startLoad(encoding string) *encodingLoad {
	encMu.Lock()
	defer encMu.Unlock()
	if l, ok := encLoads[encoding]; ok {
		return l
	}
	l := &encodingLoad{done: make(chan struct{})}
	encLoads[encoding] = l
	load := loadEncoding
	go func() {
		defer close(l.done)
		l.enc, l.err = load(encoding)
	}()
	return l
}

// ForModel 为模型选择计数器，不会阻塞：OpenAI 系模型的编码表已就绪时使用 tiktoken，
// 否则在后台开始加载并先返回字符估算器。
func ForModel(model string) Counter {
	encoding := EncodingForModel(model)
	if encoding == "" {
		return NewEstimator()
	}
	l := startLoad(encoding)
	select {
	case <-l.done:
		return counterFor(encoding, l)
	default:
		return NewEstimator()
	}
}

// ForModelContext 与 ForModel 相同，但最多等待编码表加载到 ctx 结束。
// 加载失败或 ctx 先结束时回退到字符估算器。
func ForModelContext(ctx context.Context, model string) Counter {
	encoding := EncodingForModel(model)
	if encoding == "" {
		return NewEstimator()
	}
	l := startLoad(encoding)
	select {
	case <-l.done:
		return counterFor(encoding, l)
	case <-ctx.Done():
		return NewEstimator()
	}
}

func counterFor(encoding string, l *encodingLoad) Counter {
	if l.err != nil || l.enc == nil {
		return NewEstimator()
	}
	return &Tiktoken{encoding: encoding, enc: l.enc}
}

// =============================================================================
// tiktoken
// =============================================================================

// Tiktoken 基于 tiktoken 的精确计数
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

func (t *Tiktoken) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *Tiktoken) CountMessages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + t.CountTokens(string(m.Role)) + t.CountTokens(m.Content)
	}
	return total + replyPrimingTokens
}

func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// =============================================================================
// 估算器
// =============================================================================

// Estimator 无编码表时的字符估算：ASCII 约 4 字符一个 token，
// CJK 等宽字符约 1.5 字符一个 token。
type Estimator struct{}

// NewEstimator 创建估算器
func NewEstimator() *Estimator { return &Estimator{} }

func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	var wide, narrow int
	for _, r := range text {
		if isWide(r) {
			wide++
		} else {
			narrow++
		}
	}
	n := int(float64(wide)/1.5 + float64(narrow)/4)
	return max(n, 1)
}

func (e *Estimator) CountMessages(msgs []types.Message) int {
	total := replyPrimingTokens
	for _, m := range msgs {
		total += perMessageOverhead + e.CountTokens(m.Content)
	}
	return total
}

func (e *Estimator) Name() string { return "estimator" }

func isWide(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
