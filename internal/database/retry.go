package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🔄 重试执行器
// =============================================================================

// RetryPolicy 重试策略
type RetryPolicy struct {
	// 最大尝试次数（包含第一次）
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// 基础退避时间，第 n 次重试前等待 BaseDelay * n
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
}

// DefaultRetryPolicy 返回默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Delay 返回第 attempt 次失败后的等待时间（线性退避）
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(attempt)
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// RetryState 单次调用的重试状态，不跨调用共享
type RetryState struct {
	Attempts int
	LastErr  error
}

// Sleeper 退避等待函数，ctx 结束时提前返回
type Sleeper func(ctx context.Context, d time.Duration) error

// Retrier 对数据库操作执行有界重试
type Retrier struct {
	policy      RetryPolicy
	sleep       Sleeper
	beforeRetry func(ctx context.Context, attempt int)
	onOutcome   func(outcome string)
	logger      *zap.Logger
}

// RetrierOption Retrier 配置选项
type RetrierOption func(*Retrier)

// WithRetrySleeper 替换退避等待函数
func WithRetrySleeper(s Sleeper) RetrierOption {
	return func(r *Retrier) {
		if s != nil {
			r.sleep = s
		}
	}
}

// WithBeforeRetry 设置第二次及之后每次尝试前调用的钩子（尽力而为）
func WithBeforeRetry(fn func(ctx context.Context, attempt int)) RetrierOption {
	return func(r *Retrier) {
		r.beforeRetry = fn
	}
}

// WithRetryOutcome 设置结果回调: success / retry / exhausted / permanent
func WithRetryOutcome(fn func(outcome string)) RetrierOption {
	return func(r *Retrier) {
		r.onOutcome = fn
	}
}

// NewRetrier 创建重试执行器
func NewRetrier(policy RetryPolicy, logger *zap.Logger, opts ...RetrierOption) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retrier{
		policy: policy.normalized(),
		sleep:  sleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy 返回当前策略
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Do 执行 op，遇到瞬时错误时按线性退避重试。
// 非瞬时错误原样返回；重试次数耗尽后返回包装了最后一个错误的错误。
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var state RetryState

	for {
		if state.Attempts > 0 && r.beforeRetry != nil {
			r.beforeRetry(ctx, state.Attempts)
		}

		err := op(ctx)
		state.Attempts++

		if err == nil {
			if state.Attempts > 1 {
				r.logger.Info("database operation succeeded after retry",
					zap.Int("attempts", state.Attempts),
				)
			}
			r.outcome("success")
			return nil
		}
		state.LastErr = err

		// 调用方已取消时不再重试，无论错误本身是否可重试
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.outcome("canceled")
			return fmt.Errorf("retry aborted after %d attempts: %w", state.Attempts, errors.Join(ctxErr, err))
		}

		if Classify(err) != ErrorKindTransient {
			r.outcome("permanent")
			return err
		}

		if state.Attempts >= r.policy.MaxAttempts {
			r.logger.Error("max retry attempts reached",
				zap.Int("attempts", state.Attempts),
				zap.Error(err),
			)
			r.outcome("exhausted")
			return fmt.Errorf("database operation failed after %d attempts: %w", state.Attempts, err)
		}

		delay := r.policy.Delay(state.Attempts)
		r.logger.Warn("connection pool exhausted, retrying",
			zap.Int("attempt", state.Attempts),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Int("remaining", r.policy.MaxAttempts-state.Attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		r.outcome("retry")

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", state.Attempts, errors.Join(sleepErr, state.LastErr))
		}
	}
}

func (r *Retrier) outcome(o string) {
	if r.onOutcome != nil {
		r.onOutcome(o)
	}
}

// RetryValue 带返回值的 Do
func RetryValue[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
