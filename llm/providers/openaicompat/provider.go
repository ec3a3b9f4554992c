package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/batchflow/internal/tlsutil"
	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/llm/providers"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultChatPath   = "/v1/chat/completions"
	defaultModelsPath = "/v1/models"
)

// Config OpenAI 兼容端点的差异点
type Config struct {
	ProviderName string
	APIKey       string
	BaseURL      string

	// DefaultModel 请求未指定模型时使用；为空再退到 FallbackModel
	DefaultModel  string
	FallbackModel string

	Timeout time.Duration

	ChatPath   string
	ModelsPath string // HealthCheck 使用

	// 新版 OpenAI 模型只接受 max_completion_tokens
	UseMaxCompletionTokens bool

	// Headers 在 Bearer 认证之外附加的请求头
	Headers map[string]string

	// RequestHook 发送前修改请求体
	RequestHook func(req *llm.ChatRequest, body *Request)
}

// Provider OpenAI Chat Completions 协议的通用实现，openai / openrouter 内嵌它。
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 Provider，未设置的路径与超时取默认值
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ChatPath == "" {
		cfg.ChatPath = defaultChatPath
	}
	if cfg.ModelsPath == "" {
		cfg.ModelsPath = defaultModelsPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

func (p *Provider) Name() string { return p.cfg.ProviderName }

// send 发出请求；非 2xx 响应在这里转换成 llm.Error 并关闭响应体。
func (p *Provider) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	providers.BearerTokenHeaders(req, p.cfg.APIKey)
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, providers.MapTransportError(err, p.Name())
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		p.logger.Debug("upstream error", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return resp, nil
}

// HealthCheck 请求模型列表
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	resp, err := p.send(ctx, http.MethodGet, p.cfg.ModelsPath, nil)
	status := &llm.HealthStatus{Latency: time.Since(start)}
	if err != nil {
		return status, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	status.Healthy = true
	return status, nil
}

// BuildRequestBody ChatRequest 转请求体
func (p *Provider) BuildRequestBody(req *llm.ChatRequest) Request {
	body := Request{
		Model:       providers.ChooseModel(req, p.cfg.DefaultModel, p.cfg.FallbackModel),
		Messages:    toWire(req.Messages),
		Temperature: req.Temperature,
	}
	if p.cfg.UseMaxCompletionTokens {
		body.MaxCompletionTokens = req.MaxTokens
	} else {
		body.MaxTokens = req.MaxTokens
	}
	if p.cfg.RequestHook != nil {
		p.cfg.RequestHook(req, &body)
	}
	return body
}

// Completion 单次非流式请求，不做任何重试。
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    "request has no messages",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := p.send(ctx, http.MethodPost, p.cfg.ChatPath, p.BuildRequestBody(req))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, providers.MapDecodeError(err, p.Name())
	}
	return out.toChat(p.Name()), nil
}
