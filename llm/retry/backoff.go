package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ErrExhausted 所有尝试均失败。通过 errors.Is 判断。
var ErrExhausted = errors.New("retry budget exhausted")

// RetryPolicy 定义重试策略配置
// MaxAttempts 是总尝试次数（含第一次），不是"额外重试次数"。
type RetryPolicy struct {
	MaxAttempts  int           // 总尝试次数上限（>=1）
	InitialDelay time.Duration // 初始延迟时间
	MaxDelay     time.Duration // 最大延迟时间
	Multiplier   float64       // 延迟时间倍增因子（指数退避）
	Jitter       bool          // 是否添加随机抖动（防止雪崩）

	// ShouldBackoff 判断失败后是否需要等待再尝试；返回 false 时立即进入下一次尝试。
	// 为 nil 时所有失败都退避。
	ShouldBackoff func(err error) bool

	// OnRetry 在每次失败且仍有预算时回调；delay 为 0 表示不退避。
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy 返回默认的重试策略
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  10,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// normalized 返回补齐默认值后的副本，不修改调用方的策略。
func (p *RetryPolicy) normalized() *RetryPolicy {
	if p == nil {
		return DefaultRetryPolicy()
	}
	cp := *p
	if cp.MaxAttempts < 1 {
		cp.MaxAttempts = 1
	}
	if cp.InitialDelay <= 0 {
		cp.InitialDelay = 1 * time.Second
	}
	if cp.MaxDelay <= 0 {
		cp.MaxDelay = 30 * time.Second
	}
	if cp.MaxDelay < cp.InitialDelay {
		cp.MaxDelay = cp.InitialDelay
	}
	if cp.Multiplier < 1.0 {
		cp.Multiplier = 2.0
	}
	return &cp
}

// Delay 计算第 attempt 次失败之后的等待时间（attempt 从 1 开始）
// 使用指数退避算法 + 可选的随机抖动，结果落在 [InitialDelay, MaxDelay*1.25] 内
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	np := p.normalized()
	if attempt < 1 {
		attempt = 1
	}

	// 指数退避：delay = initial * multiplier^(attempt-1)
	delay := float64(np.InitialDelay) * math.Pow(np.Multiplier, float64(attempt-1))

	if delay > float64(np.MaxDelay) || math.IsInf(delay, 1) {
		delay = float64(np.MaxDelay)
	}

	// 添加随机抖动（±25%）
	if np.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	if delay < float64(np.InitialDelay) {
		delay = float64(np.InitialDelay)
	}

	return time.Duration(delay)
}

// AttemptFunc 单次尝试；attempt 从 1 开始。
type AttemptFunc func(ctx context.Context, attempt int) error

// Retryer 重试器接口
type Retryer interface {
	// Do 执行 fn，失败时按策略重试，直到成功、预算耗尽或 ctx 结束
	Do(ctx context.Context, fn AttemptFunc) error
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy *RetryPolicy
	logger *zap.Logger
}

// NewBackoffRetryer 创建指数退避重试器
func NewBackoffRetryer(policy *RetryPolicy, logger *zap.Logger) Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{
		policy: policy.normalized(),
		logger: logger,
	}
}

// Do 实现 Retryer.Do
// 尝试是严格串行的：上一次返回之后才会开始下一次。
func (r *backoffRetryer) Do(ctx context.Context, fn AttemptFunc) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempt-1, errors.Join(err, lastErr))
			}
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Debug("重试成功", zap.Int("attempt", attempt))
			}
			return nil
		}

		if attempt >= r.policy.MaxAttempts {
			break
		}

		var delay time.Duration
		if r.policy.ShouldBackoff == nil || r.policy.ShouldBackoff(lastErr) {
			delay = r.policy.Delay(attempt)
		}

		r.logger.Debug("重试中",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, lastErr, delay)
		}

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, errors.Join(err, lastErr))
		}
	}

	r.logger.Debug("重试次数耗尽",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return &ExhaustedError{Attempts: r.policy.MaxAttempts, Last: lastErr}
}

// Wait 等待 d，期间监听 ctx 取消。d<=0 时只检查 ctx。
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError 预算耗尽，携带最后一次失败原因
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Is 使 errors.Is(err, ErrExhausted) 成立
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
