package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🛑 关闭协调器
// =============================================================================

// State 协调器状态
type State int32

const (
	// StateIdle 正常运行
	StateIdle State = iota
	// StateShuttingDown 正在执行清理
	StateShuttingDown
	// StateTerminated 清理完成，进程即将退出
	StateTerminated
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultTimeout 清理步骤的总超时
const DefaultTimeout = 30 * time.Second

// Step 一个清理步骤
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Coordinator 收到 SIGINT/SIGTERM 后只执行一次清理，然后以状态码 0 退出。
// 清理期间到达的信号直接丢弃。
type Coordinator struct {
	mu         sync.Mutex
	inProgress bool
	state      atomic.Int32

	installOnce sync.Once
	sigCh       chan os.Signal

	stepsMu sync.Mutex
	steps   []Step

	timeout time.Duration
	exit    func(code int)
	done    chan struct{}
	logger  *zap.Logger
}

// Option Coordinator 配置选项
type Option func(*Coordinator)

// WithExitFunc 替换进程退出函数（测试用）
func WithExitFunc(fn func(code int)) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.exit = fn
		}
	}
}

// WithTimeout 设置清理步骤的总超时
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New 创建关闭协调器。进程内只应创建一个。
func New(logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		timeout: DefaultTimeout,
		exit:    os.Exit,
		done:    make(chan struct{}),
		logger:  logger.With(zap.String("component", "shutdown")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register 追加清理步骤，按注册顺序执行
func (c *Coordinator) Register(name string, fn func(ctx context.Context) error) {
	c.stepsMu.Lock()
	defer c.stepsMu.Unlock()
	c.steps = append(c.steps, Step{Name: name, Fn: fn})
}

// Install 注册 SIGINT/SIGTERM 处理。重复调用无效果。
func (c *Coordinator) Install() {
	c.installOnce.Do(func() {
		c.sigCh = make(chan os.Signal, 2)
		signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			for sig := range c.sigCh {
				// 每个信号独立处理，清理进行中时后来的信号被丢弃
				go c.Handle(sig)
			}
		}()

		c.logger.Info("signal handlers installed")
	})
}

// Handle 处理一个关闭信号。返回 false 表示信号被丢弃。
func (c *Coordinator) Handle(sig os.Signal) bool {
	reason := "signal"
	if sig != nil {
		reason = sig.String()
	}
	return c.run(reason)
}

// Trigger 因非信号原因（例如 HTTP 服务崩溃）启动关闭流程
func (c *Coordinator) Trigger(reason string) bool {
	return c.run(reason)
}

func (c *Coordinator) run(reason string) bool {
	if !c.mu.TryLock() {
		c.logger.Info("shutdown already in progress, ignoring", zap.String("reason", reason))
		return false
	}
	defer c.mu.Unlock()

	if c.inProgress {
		c.logger.Info("shutdown already in progress, ignoring", zap.String("reason", reason))
		return false
	}
	c.inProgress = true
	c.state.Store(int32(StateShuttingDown))

	c.logger.Info("received shutdown request, cleaning up", zap.String("reason", reason))

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.runSteps(ctx)
	cancel()

	c.state.Store(int32(StateTerminated))
	close(c.done)

	c.logger.Info("cleanup complete, exiting")
	_ = c.logger.Sync()
	c.exit(0)
	return true
}

func (c *Coordinator) runSteps(ctx context.Context) {
	c.stepsMu.Lock()
	steps := append([]Step(nil), c.steps...)
	c.stepsMu.Unlock()

	for _, step := range steps {
		start := time.Now()
		if err := c.runStep(ctx, step); err != nil {
			c.logger.Error("cleanup step failed",
				zap.String("step", step.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("cleanup step finished",
			zap.String("step", step.Name),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// runStep 执行单个步骤，步骤中的 panic 被记录而不会中断后续步骤
func (c *Coordinator) runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cleanup step panicked",
				zap.String("step", step.Name),
				zap.Any("panic", r),
			)
		}
	}()
	return step.Fn(ctx)
}

// State 返回当前状态
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Done 清理完成后关闭
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Stop 取消信号注册
func (c *Coordinator) Stop() {
	if c.sigCh != nil {
		signal.Stop(c.sigCh)
	}
}
