package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	errAlreadyStarted = errors.New("metrics server already started")
	errClosed         = errors.New("metrics server is closed")
)

// Config 指标监听配置
type Config struct {
	// 监听地址，":0" 使用随机端口
	Addr              string        `yaml:"addr" json:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// 优雅关闭的最长等待
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Addr:              ":9091",
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Handler 挂载 /metrics 与 /healthz。gatherer 为 nil 时使用默认注册表。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", healthz)
	return mux
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type state int

const (
	stateIdle state = iota
	stateServing
	stateClosed
)

// Manager 在批处理运行期间托管指标 HTTP 服务
type Manager struct {
	cfg    Config
	srv    *http.Server
	logger *zap.Logger
	errs   chan error

	mu    sync.RWMutex
	state state
	ln    net.Listener
}

// NewManager 创建管理器，不会立即监听
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		logger: logger.With(zap.String("component", "metrics_server")),
		errs:   make(chan error, 1),
	}
}

// Start 绑定端口并在后台提供服务
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateServing:
		return errAlreadyStarted
	case stateClosed:
		return errClosed
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	m.ln = ln
	m.state = stateServing
	m.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("metrics server failed", zap.Error(err))
		select {
		case m.errs <- err:
		default:
		}
	}()
	return nil
}

// Shutdown 优雅关闭。重复调用返回 nil。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	m.state = stateClosed
	if prev != stateServing {
		return nil
	}

	if m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}
	m.ln = nil
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}

// Errors 后台服务的异步错误，最多缓存一个
func (m *Manager) Errors() <-chan error { return m.errs }

// Addr 实际监听地址，未监听时返回配置值
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ln == nil {
		return m.cfg.Addr
	}
	return m.ln.Addr().String()
}

// IsRunning 报告是否正在提供服务
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateServing
}
