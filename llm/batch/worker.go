package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/batchflow/internal/metrics"
	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/llm/cache"
	"github.com/BaSui01/batchflow/llm/retry"
	"github.com/BaSui01/batchflow/llm/tokenizer"
	"github.com/BaSui01/batchflow/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// =============================================================================
// 单条目状态机
// =============================================================================
//
//	START → CACHE_CHECK → (CACHE_HIT_RETURN | INVOKE) → VERIFY → (ACCEPT_AND_CACHE | RETRY | EXHAUSTED)
//
// 准入闸门（semaphore）只在 Provider 调用期间持有，退避等待时释放。

// worker 一个批次内所有条目共享的执行上下文。字段在批次运行期间只读。
type worker struct {
	provider  llm.Provider
	store     cache.Store
	keys      cache.KeyStrategy
	cfg       ModelConfig
	system    string
	gate      *semaphore.Weighted
	limiter   *rate.Limiter
	retryer   retry.Retryer
	counter   tokenizer.Counter
	metrics   *metrics.Collector
	cacheType string
	tracer    trace.Tracer
	logger    *zap.Logger
}

// key 计算条目的缓存键
func (w *worker) key(item Item) string {
	return w.keys.GenerateKey(cache.KeyInput{
		ItemID:      item.ID,
		Messages:    item.Messages(w.system),
		Model:       w.cfg.Model,
		Temperature: w.cfg.Temperature,
		MaxTokens:   w.cfg.MaxTokens,
	})
}

// process 运行单个条目直到得到结果。任何错误（包括 panic）都被收敛为失败结果。
func (w *worker) process(ctx context.Context, item Item, force bool) (res Result) {
	start := time.Now()
	ctx = types.WithItemID(ctx, item.ID)
	ctx, span := w.tracer.Start(ctx, "batch.item", trace.WithAttributes(
		attribute.String("batch.item_id", item.ID),
		attribute.Bool("batch.force", force),
	))
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("item panicked", zap.String("item_id", item.ID), zap.Any("panic", r))
			res = Result{ItemID: item.ID, Err: fmt.Errorf("item panicked: %v", r)}
		}
		span.SetAttributes(
			attribute.String("batch.status", string(res.Status())),
			attribute.Int("batch.attempts", res.Attempts),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
		w.metrics.RecordItem(string(res.Status()), time.Since(start))
	}()

	key := w.key(item)
	log := w.logger.With(zap.String("item_id", item.ID), zap.String("cache_key", key))

	if !force {
		if r, ok := w.fromCache(ctx, log, item, key); ok {
			return r
		}
	}

	data, invocations, err := w.generate(ctx, log, item, span)
	if err != nil {
		return w.failure(log, item.ID, invocations, err)
	}

	w.writeCache(ctx, log, item.ID, key, data)
	return Result{
		ItemID:       item.ID,
		ResponseText: data.ResponseText,
		Response:     &data,
		Attempts:     invocations,
	}
}

// fromCache CACHE_CHECK：命中且（无校验器或校验通过）时返回缓存结果
func (w *worker) fromCache(ctx context.Context, log *zap.Logger, item Item, key string) (Result, bool) {
	entry, err := w.store.Get(ctx, key)
	switch {
	case cache.IsMiss(err):
		w.metrics.RecordCacheMiss(w.cacheType)
		return Result{}, false
	case err != nil:
		log.Warn("cache read failed, treating as miss", zap.Error(err))
		w.metrics.RecordCacheError(w.cacheType, "get")
		return Result{}, false
	}

	data := ResponseData{
		ResponseText: entry.ResponseText,
		Model:        entry.Model,
		FinishReason: entry.FinishReason,
		Usage:        entry.Usage,
	}
	if v := w.cfg.Verifier; v != nil {
		// 再校验不计入尝试预算
		if err := verify(v, item.ID, data, item.Content, w.cfg.VerifierArgs); err != nil {
			log.Debug("cached response rejected, regenerating", zap.Error(err))
			w.metrics.RecordVerificationRejection()
			return Result{}, false
		}
	}

	log.Debug("cache hit")
	w.metrics.RecordCacheHit(w.cacheType)
	return Result{
		ItemID:       item.ID,
		ResponseText: data.ResponseText,
		FromCache:    true,
		Response:     &data,
	}, true
}

// generate INVOKE → VERIFY 循环，返回通过校验的响应与实际 Provider 调用次数
func (w *worker) generate(ctx context.Context, log *zap.Logger, item Item, span trace.Span) (ResponseData, int, error) {
	runID, _ := types.RunID(ctx)
	traceID := uuid.NewString()
	if sc := span.SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	req := &llm.ChatRequest{
		TraceID:     traceID,
		Model:       w.cfg.Model,
		Messages:    item.Messages(w.system),
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: float32(w.cfg.Temperature),
		Timeout:     w.cfg.RequestTimeout,
		Metadata: map[string]string{
			"item_id": item.ID,
			"run_id":  runID,
		},
	}

	var invocations int
	accepted, err := retry.DoWithResult(ctx, w.retryer, func(ctx context.Context, attempt int) (ResponseData, error) {
		data, invoked, err := w.invoke(ctx, req)
		if invoked {
			invocations++
		}
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("attempt", attempt)))
		if err != nil {
			class := llm.Classify(err)
			w.metrics.RecordAttempt(class.String())
			log.Warn("attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", w.cfg.MaxRetries),
				zap.String("failure", class.String()),
				zap.Bool("transient", llm.IsTransient(err)),
				zap.Error(err),
			)
			return ResponseData{}, err
		}

		if v := w.cfg.Verifier; v != nil {
			if err := verify(v, item.ID, data, item.Content, w.cfg.VerifierArgs); err != nil {
				w.metrics.RecordAttempt("rejected")
				w.metrics.RecordVerificationRejection()
				log.Debug("response rejected by verifier", zap.Int("attempt", attempt), zap.Error(err))
				return ResponseData{}, err
			}
		}

		w.metrics.RecordAttempt("success")
		log.Debug("response accepted", zap.Int("attempt", attempt))
		return data, nil
	})
	return accepted, invocations, err
}

// invoke 通过限流器与准入闸门后调用一次 Provider。
// invoked 表示 Provider 是否真的被调用（等待闸门时被取消则为 false）。
func (w *worker) invoke(ctx context.Context, req *llm.ChatRequest) (data ResponseData, invoked bool, err error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return ResponseData{}, false, err
		}
	}
	if err := w.gate.Acquire(ctx, 1); err != nil {
		return ResponseData{}, false, err
	}

	name := w.provider.Name()
	start := time.Now()
	resp, err := w.call(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		w.metrics.RecordLLMRequest(name, w.cfg.Model, "error", elapsed, 0, 0)
		return ResponseData{}, true, err
	}

	text, err := resp.Text()
	if err != nil {
		w.metrics.RecordLLMRequest(name, w.cfg.Model, "malformed", elapsed, 0, 0)
		return ResponseData{}, true, err
	}

	usage := types.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.PromptTokens == 0 && w.counter != nil {
		usage.PromptTokens = w.counter.CountMessages(req.Messages)
	}
	w.metrics.RecordLLMRequest(name, w.cfg.Model, "success", elapsed, usage.PromptTokens, usage.CompletionTokens)

	model := resp.Model
	if model == "" {
		model = w.cfg.Model
	}
	return ResponseData{
		ResponseText: text,
		Model:        model,
		FinishReason: resp.FinishReason(),
		Usage:        usage,
	}, true, nil
}

// call 在已持有闸门的前提下调用 Provider，返回前释放闸门。
// Provider panic 被转换为普通失败；单次请求超时被归类为超时错误。
func (w *worker) call(ctx context.Context, req *llm.ChatRequest) (resp *llm.ChatResponse, err error) {
	w.metrics.IncInflight()
	defer func() {
		w.metrics.DecInflight()
		w.gate.Release(1)
	}()

	callCtx := ctx
	if w.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, w.cfg.RequestTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("provider %s panicked: %v", w.provider.Name(), r)
		}
	}()

	resp, err = w.provider.Completion(callCtx, req)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil &&
		llm.Classify(err) != llm.FailureTimeout {
		err = llm.NewTimeoutError(w.provider.Name(), err)
	}
	return resp, err
}

// writeCache ACCEPT_AND_CACHE：写入失败只记录日志，条目仍然成功
func (w *worker) writeCache(ctx context.Context, log *zap.Logger, itemID, key string, data ResponseData) {
	entry := &cache.Entry{
		ItemID:       itemID,
		ResponseText: data.ResponseText,
		Model:        data.Model,
		FinishReason: data.FinishReason,
		Usage:        data.Usage,
		CreatedAt:    time.Now().UTC(),
	}
	// 批次被取消时已生成的结果仍要落盘
	if err := w.store.Put(context.WithoutCancel(ctx), key, entry); err != nil {
		log.Warn("cache write failed", zap.Error(err))
		w.metrics.RecordCacheError(w.cacheType, "put")
	}
}

// failure EXHAUSTED 或被取消
func (w *worker) failure(log *zap.Logger, itemID string, invocations int, err error) Result {
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		log.Warn("item failed", zap.Int("attempts", ex.Attempts), zap.Error(ex.Last))
		return Result{
			ItemID:    itemID,
			Err:       fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, ex.Attempts, ex.Last),
			Exhausted: true,
			Attempts:  invocations,
		}
	}
	log.Warn("item aborted", zap.Error(err))
	return Result{ItemID: itemID, Err: err, Attempts: invocations}
}
