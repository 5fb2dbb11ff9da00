package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🛡️ 连接管理器
// =============================================================================

// DefaultReapBeforeRetryIdle 重试前回收空闲会话的阈值
const DefaultReapBeforeRetryIdle = 60 * time.Second

// MetricsRecorder 连接管理器使用的指标接口
type MetricsRecorder interface {
	RecordDBRetry(outcome string)
	RecordIdleTerminated(n int)
	RecordDBSessions(active, idle int)
	RecordDBConnections(database string, open, idle int)
	RecordPoolTimeout()
}

type nopMetrics struct{}

func (nopMetrics) RecordDBRetry(string)                 {}
func (nopMetrics) RecordIdleTerminated(int)             {}
func (nopMetrics) RecordDBSessions(int, int)            {}
func (nopMetrics) RecordDBConnections(string, int, int) {}
func (nopMetrics) RecordPoolTimeout()                   {}

// ConnectionStats 会话统计。查询失败时各计数为 -1 且 Error 非空。
type ConnectionStats struct {
	Active int    `json:"active"`
	Idle   int    `json:"idle"`
	Total  int    `json:"total"`
	Error  string `json:"error,omitempty"`
}

// OK 统计是否有效
func (s ConnectionStats) OK() bool {
	return s.Error == "" && s.Total >= 0
}

func failedConnectionStats(err error) ConnectionStats {
	return ConnectionStats{Active: -1, Idle: -1, Total: -1, Error: err.Error()}
}

// ConnectionManager 进程内唯一的连接管理器，为带连接池的后端提供重试、空闲回收与健康报告
type ConnectionManager struct {
	backend Backend
	admin   SessionAdmin
	retrier *Retrier
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	// 空闲回收与清理互斥
	maintMu sync.Mutex

	connectionAttempts  atomic.Int64
	maxRetries          int
	retryDelay          time.Duration
	reapBeforeRetryIdle time.Duration

	maintInterval  time.Duration
	maintIdleAfter time.Duration

	closed   atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	loopDone chan struct{}
}

// ManagerOption ConnectionManager 配置选项
type ManagerOption func(*managerOptions)

type managerOptions struct {
	policy              RetryPolicy
	sleeper             Sleeper
	metrics             MetricsRecorder
	reapBeforeRetryIdle time.Duration
	maintInterval       time.Duration
	maintIdleAfter      time.Duration
}

// WithRetryPolicy 设置重试策略
func WithRetryPolicy(p RetryPolicy) ManagerOption {
	return func(o *managerOptions) { o.policy = p }
}

// WithSleeper 替换退避等待函数（测试用）
func WithSleeper(s Sleeper) ManagerOption {
	return func(o *managerOptions) { o.sleeper = s }
}

// WithMetrics 设置指标记录器
func WithMetrics(m MetricsRecorder) ManagerOption {
	return func(o *managerOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithReapBeforeRetry 设置重试前回收空闲会话的阈值，0 表示不回收
func WithReapBeforeRetry(idle time.Duration) ManagerOption {
	return func(o *managerOptions) { o.reapBeforeRetryIdle = idle }
}

// WithMaintenance 启用后台维护：每隔 interval 回收空闲超过 idleAfter 的会话并记录连接池指标
func WithMaintenance(interval, idleAfter time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.maintInterval = interval
		o.maintIdleAfter = idleAfter
	}
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager(backend Backend, logger *zap.Logger, opts ...ManagerOption) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := managerOptions{
		policy:              DefaultRetryPolicy(),
		metrics:             nopMetrics{},
		reapBeforeRetryIdle: DefaultReapBeforeRetryIdle,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &ConnectionManager{
		backend:             backend,
		logger:              logger.With(zap.String("component", "db_manager")),
		metrics:             o.metrics,
		tracer:              otel.Tracer("github.com/BaSui01/clubcms/internal/database"),
		maxRetries:          o.policy.normalized().MaxAttempts,
		retryDelay:          o.policy.BaseDelay,
		reapBeforeRetryIdle: o.reapBeforeRetryIdle,
		maintInterval:       o.maintInterval,
		maintIdleAfter:      o.maintIdleAfter,
		stopCh:              make(chan struct{}),
		loopDone:            make(chan struct{}),
	}

	if admin, ok := backend.(SessionAdmin); ok {
		m.admin = admin
	}

	retrierOpts := []RetrierOption{
		WithRetryOutcome(m.metrics.RecordDBRetry),
		WithBeforeRetry(m.reapBeforeRetry),
	}
	if o.sleeper != nil {
		retrierOpts = append(retrierOpts, WithRetrySleeper(o.sleeper))
	}
	m.retrier = NewRetrier(o.policy, m.logger, retrierOpts...)

	if m.maintInterval > 0 && m.admin != nil {
		go m.maintenanceLoop()
	} else {
		close(m.loopDone)
	}

	m.logger.Info("connection manager initialized",
		zap.String("backend", string(backend.Kind())),
		zap.Int("max_retries", m.maxRetries),
		zap.Duration("retry_delay", m.retryDelay),
		zap.Duration("maintenance_interval", m.maintInterval),
	)

	return m
}

// Backend 返回底层后端
func (m *ConnectionManager) Backend() Backend { return m.backend }

// DB 返回 GORM 实例
func (m *ConnectionManager) DB() *gorm.DB { return m.backend.DB() }

// RetryPolicy 返回重试策略
func (m *ConnectionManager) RetryPolicy() RetryPolicy { return m.retrier.Policy() }

// ConnectionAttempts 返回累计执行尝试次数
func (m *ConnectionManager) ConnectionAttempts() int64 { return m.connectionAttempts.Load() }

// =============================================================================
// 🎯 执行
// =============================================================================

// Execute 通过重试执行器运行 fn。瞬时错误按线性退避重试，
// 重试前尽力回收空闲会话。
func (m *ConnectionManager) Execute(ctx context.Context, fn TxFunc) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	ctx, span := m.tracer.Start(ctx, "db.execute",
		trace.WithAttributes(attribute.String("db.system", string(m.backend.Kind()))),
	)
	defer span.End()

	attempts := 0
	err := m.retrier.Do(ctx, func(ctx context.Context) error {
		attempts++
		m.connectionAttempts.Add(1)
		err := m.backend.Execute(ctx, fn)
		if errors.Is(err, ErrPoolTimeout) {
			m.metrics.RecordPoolTimeout()
		}
		return err
	})

	span.SetAttributes(attribute.Int("db.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// reapBeforeRetry 重试前的空闲回收钩子。已有回收在运行时跳过，失败忽略。
func (m *ConnectionManager) reapBeforeRetry(ctx context.Context, attempt int) {
	if m.admin == nil || m.reapBeforeRetryIdle <= 0 {
		return
	}
	if !m.maintMu.TryLock() {
		m.logger.Debug("idle reap already running, skipping", zap.Int("attempt", attempt))
		return
	}
	defer m.maintMu.Unlock()

	n := m.terminateIdleLocked(ctx, m.reapBeforeRetryIdle)
	if n > 0 {
		m.logger.Info("reaped idle connections before retry",
			zap.Int("terminated", n),
			zap.Int("attempt", attempt),
		)
	}
}

// =============================================================================
// 🧹 空闲回收
// =============================================================================

// TerminateIdleConnections 终止空闲超过 idle 的会话，返回终止数量。
// 简单后端直接返回 0；失败时记录日志并返回 0。
func (m *ConnectionManager) TerminateIdleConnections(ctx context.Context, idle time.Duration) int {
	if m.admin == nil {
		return 0
	}

	m.maintMu.Lock()
	defer m.maintMu.Unlock()

	return m.terminateIdleLocked(ctx, idle)
}

func (m *ConnectionManager) terminateIdleLocked(ctx context.Context, idle time.Duration) int {
	n, err := m.admin.TerminateIdleSessions(ctx, idle)
	if err != nil {
		m.logger.Error("failed to terminate idle connections",
			zap.Duration("idle", idle),
			zap.Error(err),
		)
		return 0
	}

	m.metrics.RecordIdleTerminated(n)
	m.logger.Info("terminated idle connections",
		zap.Int("terminated", n),
		zap.Duration("idle", idle),
	)
	return n
}

// =============================================================================
// 🏥 健康报告
// =============================================================================

// GetActiveConnections 统计当前数据库用户的会话。只计入 active 与 idle 状态。
// 查询（含重试）最终失败时返回 -1 计数与错误信息。
func (m *ConnectionManager) GetActiveConnections(ctx context.Context) ConnectionStats {
	if m.admin == nil {
		return ConnectionStats{}
	}

	states, err := RetryValue(ctx, m.retrier, func(ctx context.Context) (map[string]int, error) {
		m.connectionAttempts.Add(1)
		return m.admin.SessionStates(ctx)
	})
	if err != nil {
		m.logger.Error("failed to get connection stats", zap.Error(err))
		return failedConnectionStats(err)
	}

	stats := ConnectionStats{
		Active: states["active"],
		Idle:   states["idle"],
	}
	stats.Total = stats.Active + stats.Idle
	m.metrics.RecordDBSessions(stats.Active, stats.Idle)
	return stats
}

// CheckConnectionHealth 执行 SELECT 1（带重试），返回是否成功
func (m *ConnectionManager) CheckConnectionHealth(ctx context.Context) bool {
	err := m.Execute(ctx, func(tx *gorm.DB) error {
		var one int
		return tx.Raw("SELECT 1").Scan(&one).Error
	})
	if err != nil {
		m.logger.Error("database health check failed", zap.Error(err))
		return false
	}
	return true
}

// PoolStats 返回连接池统计信息
func (m *ConnectionManager) PoolStats() PoolStats {
	stats := m.backend.Stats()
	m.metrics.RecordDBConnections(string(m.backend.Kind()), stats.OpenConnections, stats.Idle)
	return stats
}

// =============================================================================
// 🔧 维护与清理
// =============================================================================

// maintenanceLoop 后台定时回收空闲会话
func (m *ConnectionManager) maintenanceLoop() {
	defer close(m.loopDone)

	ticker := time.NewTicker(m.maintInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.maintInterval)
			m.TerminateIdleConnections(ctx, m.maintIdleAfter)
			stats := m.PoolStats()
			m.logger.Debug("database maintenance pass",
				zap.Int("open_connections", stats.OpenConnections),
				zap.Int("in_use", stats.InUse),
				zap.Int("idle", stats.Idle),
			)
			cancel()
		}
	}
}

// Cleanup 停止后台维护并关闭后端。可重复调用，错误只记录不返回。
func (m *ConnectionManager) Cleanup(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stopCh) })

	select {
	case <-m.loopDone:
	case <-ctx.Done():
		m.logger.Warn("maintenance loop did not stop before cleanup deadline")
	}

	m.maintMu.Lock()
	defer m.maintMu.Unlock()

	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	if err := m.backend.Close(); err != nil {
		m.logger.Error("error during database cleanup", zap.Error(err))
		return
	}
	m.logger.Info("database connections cleaned up")
}

// Closed 是否已清理
func (m *ConnectionManager) Closed() bool {
	return m.closed.Load()
}

var _ Executor = (*ConnectionManager)(nil)
