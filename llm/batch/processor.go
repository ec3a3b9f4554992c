package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/batchflow/internal/metrics"
	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/llm/cache"
	"github.com/BaSui01/batchflow/llm/retry"
	"github.com/BaSui01/batchflow/llm/tokenizer"
	"github.com/BaSui01/batchflow/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// tracerName OpenTelemetry instrumentation scope
const tracerName = "github.com/BaSui01/batchflow/llm/batch"

// pendingPerSlot 每个并发槽位允许排队（退避等待中）的条目数
const pendingPerSlot = 8

// counterResolveTimeout 派发前等待 tiktoken 编码表就绪的上限，超时使用估算器
var counterResolveTimeout = 2 * time.Second

// Processor 批处理引擎：输入归一化、缓存查找、限流调用、校验重试、结果汇总。
// 同一个 Processor 可以串行或并发地运行多个批次，批次之间共享 Provider 与缓存。
// WithProgress 设置的进度实例同样被共享，并发运行时应通过 Request.Progress
// 为每个批次指定独立的进度。
type Processor struct {
	provider  llm.Provider
	store     cache.Store
	keys      cache.KeyStrategy
	metrics   *metrics.Collector
	tracer    trace.Tracer
	progress  Progress
	counter   tokenizer.Counter
	cacheType string
	logger    *zap.Logger

	runs      atomic.Int64
	items     atomic.Int64
	generated atomic.Int64
	cached    atomic.Int64
	failed    atomic.Int64
}

// Option 配置 Processor
type Option func(*Processor)

// WithKeyStrategy 替换缓存键策略（默认 item 策略）
func WithKeyStrategy(ks cache.KeyStrategy) Option {
	return func(p *Processor) {
		if ks != nil {
			p.keys = ks
		}
	}
}

// WithMetrics 启用 Prometheus 指标
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Processor) { p.metrics = c }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress 设置进度上报
func WithProgress(pr Progress) Option {
	return func(p *Processor) {
		if pr != nil {
			p.progress = pr
		}
	}
}

// WithTracer 设置 tracer；默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithTokenCounter 固定用于估算 prompt token 的计数器。
// 未设置时按批次模型选择。
func WithTokenCounter(c tokenizer.Counter) Option {
	return func(p *Processor) { p.counter = c }
}

// WithCacheLabel 覆盖指标中的 cache 类型标签
func WithCacheLabel(label string) Option {
	return func(p *Processor) {
		if label != "" {
			p.cacheType = label
		}
	}
}

// NewProcessor 创建批处理引擎
func NewProcessor(provider llm.Provider, store cache.Store, opts ...Option) (*Processor, error) {
	if provider == nil {
		return nil, errors.New("batch: provider is required")
	}
	if store == nil {
		return nil, errors.New("batch: cache store is required")
	}
	p := &Processor{
		provider:  provider,
		store:     store,
		keys:      cache.NewItemKeyStrategy(),
		tracer:    otel.Tracer(tracerName),
		progress:  NopProgress{},
		cacheType: cacheLabel(store),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "batch"))
	return p, nil
}

// Run 处理一个批次并返回按输入顺序排列的结果。
// 只有配置或输入校验失败会返回 error；单个条目的失败记录在各自的 Result 中。
// ctx 取消后尚未完成的条目以取消错误结束。
func (p *Processor) Run(ctx context.Context, cfg ModelConfig, req Request) (*Results, error) {
	start := time.Now()
	items, err := p.prepare(cfg, req)
	if err != nil {
		p.metrics.RecordBatch("invalid", time.Since(start))
		return nil, err
	}

	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	ctx, span := p.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("batch.run_id", runID),
		attribute.String("batch.model", cfg.Model),
		attribute.Int("batch.items", len(items)),
		attribute.Bool("batch.force", req.Force),
	))
	defer span.End()

	log := p.logger.With(zap.String("run_id", runID))
	log.Info("batch started",
		zap.Int("items", len(items)),
		zap.String("model", cfg.Model),
		zap.String("provider", p.provider.Name()),
		zap.Int("max_concurrent_requests", cfg.MaxConcurrentRequests),
		zap.Bool("force", req.Force),
	)

	w := p.newWorker(cfg, p.resolveCounter(ctx, cfg.Model), log)
	results := make([]Result, len(items))

	progress := p.progress
	if req.Progress != nil {
		progress = req.Progress
	}
	var progressMu sync.Mutex
	progress.Start(req.Desc, len(items))

	var g errgroup.Group
	g.SetLimit(max(cfg.MaxConcurrentRequests*pendingPerSlot, 64))
	for i, item := range items {
		g.Go(func() error {
			r := w.process(ctx, item, req.Force)
			results[i] = r
			progressMu.Lock()
			progress.Advance(r)
			progressMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	progress.Finish()

	rs := newResults(items, results)
	sum := rs.Summary()
	p.record(sum)

	status := "completed"
	if err := ctx.Err(); err != nil {
		status = "cancelled"
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Int("batch.generated", sum.Generated),
		attribute.Int("batch.cached", sum.Cached),
		attribute.Int("batch.failed", sum.Failed),
	)
	p.metrics.RecordBatch(status, time.Since(start))
	log.Info("batch finished",
		zap.String("status", status),
		zap.Stringer("summary", sum),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rs, nil
}

// Keys 返回批次中每个条目的缓存键，顺序与输入一致
func (p *Processor) Keys(cfg ModelConfig, req Request) ([]Item, []string, error) {
	items, err := p.prepare(cfg, req)
	if err != nil {
		return nil, nil, err
	}
	w := &worker{keys: p.keys, cfg: cfg, system: cfg.systemInstruction()}
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = w.key(item)
	}
	return items, keys, nil
}

// Invalidate 删除批次中各条目在当前配置下的缓存，返回被处理的键。
// 不存在的键不算错误。
func (p *Processor) Invalidate(ctx context.Context, cfg ModelConfig, req Request) ([]string, error) {
	items, keys, err := p.Keys(cfg, req)
	if err != nil {
		return nil, err
	}
	var errs []error
	for i, key := range keys {
		if err := p.store.Invalidate(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", items[i].ID, err))
			p.metrics.RecordCacheError(p.cacheType, "invalidate")
		}
	}
	p.logger.Info("cache invalidated", zap.Int("keys", len(keys)), zap.Int("errors", len(errs)))
	return keys, errors.Join(errs...)
}

// ProcessorStats 进程内累计统计
type ProcessorStats struct {
	Runs      int64 `json:"runs"`
	Items     int64 `json:"items"`
	Generated int64 `json:"generated"`
	Cached    int64 `json:"cached"`
	Failed    int64 `json:"failed"`
}

// CacheHitRate 缓存命中条目占比
func (s ProcessorStats) CacheHitRate() float64 {
	if s.Items == 0 {
		return 0
	}
	return float64(s.Cached) / float64(s.Items)
}

// Stats 返回累计统计
func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		Runs:      p.runs.Load(),
		Items:     p.items.Load(),
		Generated: p.generated.Load(),
		Cached:    p.cached.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Processor) record(s Summary) {
	p.runs.Add(1)
	p.items.Add(int64(s.Total))
	p.generated.Add(int64(s.Generated))
	p.cached.Add(int64(s.Cached))
	p.failed.Add(int64(s.Failed))
}

func (p *Processor) prepare(cfg ModelConfig, req Request) ([]Item, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return Normalize(req)
}

// resolveCounter 在派发条目之前确定 token 计数器，等待时间受 ctx 与
// counterResolveTimeout 约束；条目处理路径上不再加载编码表。
func (p *Processor) resolveCounter(ctx context.Context, model string) tokenizer.Counter {
	if p.counter != nil {
		return p.counter
	}
	ctx, cancel := context.WithTimeout(ctx, counterResolveTimeout)
	defer cancel()
	return tokenizer.ForModelContext(ctx, model)
}

func (p *Processor) newWorker(cfg ModelConfig, counter tokenizer.Counter, log *zap.Logger) *worker {
	policy := cfg.retryPolicy()
	policy.ShouldBackoff = llm.IsTransient

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), max(1, cfg.MaxConcurrentRequests))
	}

	return &worker{
		provider:  p.provider,
		store:     p.store,
		keys:      p.keys,
		cfg:       cfg,
		system:    cfg.systemInstruction(),
		gate:      semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		limiter:   limiter,
		retryer:   retry.NewBackoffRetryer(policy, log),
		counter:   counter,
		metrics:   p.metrics,
		cacheType: p.cacheType,
		tracer:    p.tracer,
		logger:    log,
	}
}

// cacheLabel 指标标签
func cacheLabel(s cache.Store) string {
	switch s.(type) {
	case *cache.FileStore:
		return "file"
	case *cache.MemoryStore:
		return "memory"
	case *cache.RedisStore:
		return "redis"
	case *cache.SQLStore:
		return "sql"
	case *cache.MongoStore:
		return "mongo"
	case *cache.MultiLevel:
		return "multilevel"
	default:
		return "custom"
	}
}

// Run 用一次性的 Processor 处理批次
func Run(ctx context.Context, cfg ModelConfig, provider llm.Provider, store cache.Store, req Request, opts ...Option) (*Results, error) {
	p, err := NewProcessor(provider, store, opts...)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, cfg, req)
}
