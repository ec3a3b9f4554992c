// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持固定响应、按调用顺序或按条目编排的回复脚本、延迟与错误注入，
// 并记录调用次数与最大并发，供批处理测试断言。
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/testutil/fixtures"
	"github.com/BaSui01/batchflow/types"
)

// --- 回复脚本 ---

// Reply 单次调用的预设结果。Panic 非 nil 时 Completion 直接 panic。
type Reply struct {
	Text  string
	Err   error
	Panic any
	// Empty 返回没有 choices 的响应
	Empty bool
}

// Text 成功回复
func Text(s string) Reply { return Reply{Text: s} }

// Fail 失败回复
func Fail(err error) Reply { return Reply{Err: err} }

// Empty 没有 choices 的畸形响应
func Empty() Reply { return Reply{Empty: true} }

// Panic 让本次调用 panic
func Panic(v any) Reply { return Reply{Panic: v} }

// --- MockProvider 结构 ---

// MockProvider 是 LLM Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	// 响应配置
	name     string
	response string
	echo     bool
	err      error
	healthy  error

	promptTokens     int
	completionTokens int

	script     []Reply
	itemScript map[string][]Reply
	completion func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// 行为控制
	delay time.Duration

	// 调用记录
	calls       []MockProviderCall
	perItem     map[string]int
	inflight    int
	maxInflight int
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	ItemID   string
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:             "mock",
		response:         "Mock response",
		promptTokens:     10,
		completionTokens: 20,
		itemScript:       make(map[string][]Reply),
		perItem:          make(map[string]int),
	}
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResponse 设置默认响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithEcho 默认响应改为 "echo: <最后一条消息内容>"
func (m *MockProvider) WithEcho() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = true
	return m
}

// WithError 设置每次调用都返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithHealthError 让 HealthCheck 失败
func (m *MockProvider) WithHealthError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = err
	return m
}

// WithTokenUsage 设置 Token 使用量
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithDelay 设置每次调用的延迟，期间尊重 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithScript 按全局调用顺序依次消费的回复，耗尽后回到默认响应
func (m *MockProvider) WithScript(replies ...Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
	return m
}

// WithItemScript 按条目（请求 Metadata 中的 item_id）依次消费的回复
func (m *MockProvider) WithItemScript(itemID string, replies ...Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemScript[itemID] = append(m.itemScript[itemID], replies...)
	return m
}

// WithCompletionFunc 设置自定义 Completion 函数，优先级低于脚本
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completion = fn
	return m
}

// --- Provider 接口实现 ---

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// HealthCheck 执行健康检查
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.healthy != nil {
		return &llm.HealthStatus{Healthy: false}, m.healthy
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 生成响应
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	itemID := req.Metadata["item_id"]
	if itemID == "" {
		itemID, _ = types.ItemID(ctx)
	}

	m.mu.Lock()
	m.perItem[itemID]++
	m.inflight++
	m.maxInflight = max(m.maxInflight, m.inflight)
	reply, scripted := m.next(itemID)
	delay := m.delay
	fn := m.completion
	fixed := m.err
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			m.record(itemID, req, nil, ctx.Err())
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	var (
		resp *llm.ChatResponse
		err  error
	)
	switch {
	case scripted && reply.Panic != nil:
		m.record(itemID, req, nil, fmt.Errorf("panic: %v", reply.Panic))
		panic(reply.Panic)
	case scripted && reply.Err != nil:
		err = reply.Err
	case scripted && reply.Empty:
		resp = fixtures.EmptyResponse(req.Model)
	case scripted:
		resp = m.build(req, reply.Text)
	case fixed != nil:
		err = fixed
	case fn != nil:
		resp, err = fn(ctx, req)
	default:
		resp = m.build(req, m.defaultText(req))
	}
	m.record(itemID, req, resp, err)
	return resp, err
}

// next 取出下一条脚本回复；调用方持有锁
func (m *MockProvider) next(itemID string) (Reply, bool) {
	if q := m.itemScript[itemID]; len(q) > 0 {
		m.itemScript[itemID] = q[1:]
		return q[0], true
	}
	if len(m.script) > 0 {
		r := m.script[0]
		m.script = m.script[1:]
		return r, true
	}
	return Reply{}, false
}

func (m *MockProvider) defaultText(req *llm.ChatRequest) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.echo && len(req.Messages) > 0 {
		return "echo: " + req.Messages[len(req.Messages)-1].Content
	}
	return m.response
}

func (m *MockProvider) build(req *llm.ChatRequest, text string) *llm.ChatResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := fixtures.ResponseWithUsage(text, m.promptTokens, m.completionTokens)
	resp.Provider = m.name
	resp.Model = req.Model
	return resp
}

func (m *MockProvider) record(itemID string, req *llm.ChatRequest, resp *llm.ChatResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockProviderCall{ItemID: itemID, Request: req, Response: resp, Error: err})
}

// --- 查询方法 ---

// GetCalls 获取所有调用记录
func (m *MockProvider) GetCalls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall{}, m.calls...)
}

// GetCallCount 获取调用次数
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.perItem {
		total += n
	}
	return total
}

// CallsFor 某个条目的调用次数
func (m *MockProvider) CallsFor(itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perItem[itemID]
}

// MaxInflight 观察到的最大并发调用数
func (m *MockProvider) MaxInflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInflight
}

// GetLastCall 获取最后一次调用
func (m *MockProvider) GetLastCall() *MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset 重置调用记录与脚本，保留默认响应配置
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.perItem = make(map[string]int)
	m.itemScript = make(map[string][]Reply)
	m.script = nil
	m.maxInflight = 0
	m.err = nil
}

// --- 预设 Provider 工厂 ---

// NewSuccessProvider 创建总是成功的 Provider
func NewSuccessProvider(response string) *MockProvider {
	return NewMockProvider().WithResponse(response)
}

// NewErrorProvider 创建总是失败的 Provider
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

// NewEchoProvider 创建回显最后一条消息的 Provider
func NewEchoProvider() *MockProvider {
	return NewMockProvider().WithEcho()
}

// ErrMockUnavailable 通用的不可重试错误
var ErrMockUnavailable = errors.New("mock provider: unavailable")
