package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// =============================================================================
// 🗄️ 连接池配置
// =============================================================================

// PoolConfig 连接池配置。启动时创建一次，之后不再修改。
type PoolConfig struct {
	// 常驻连接数
	MaxPoolSize int `yaml:"max_pool_size" json:"max_pool_size"`

	// 超出常驻连接后允许的额外连接数
	MaxOverflow int `yaml:"max_overflow" json:"max_overflow"`

	// 等待连接槽位的最长时间
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`

	// 连接最大生命周期，到期后回收
	ConnRecycle time.Duration `yaml:"conn_recycle" json:"conn_recycle"`

	// 使用前探活
	PrePing bool `yaml:"pre_ping" json:"pre_ping"`
}

// DefaultPoolConfig 返回默认连接池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxPoolSize:    5,
		MaxOverflow:    10,
		AcquireTimeout: 30 * time.Second,
		ConnRecycle:    280 * time.Second,
		PrePing:        true,
	}
}

// MinimalPoolConfig 适用于连接数极少的 serverless 套餐
func MinimalPoolConfig() PoolConfig {
	return PoolConfig{
		MaxPoolSize:    3,
		MaxOverflow:    5,
		AcquireTimeout: 30 * time.Second,
		ConnRecycle:    240 * time.Second,
		PrePing:        true,
	}
}

// MaxOpenConns 返回允许同时打开的连接总数
func (c PoolConfig) MaxOpenConns() int {
	return c.MaxPoolSize + c.MaxOverflow
}

// Validate 验证配置
func (c PoolConfig) Validate() error {
	if c.MaxPoolSize <= 0 {
		return fmt.Errorf("max_pool_size must be positive, got %d", c.MaxPoolSize)
	}
	if c.MaxOverflow < 0 {
		return fmt.Errorf("max_overflow must not be negative, got %d", c.MaxOverflow)
	}
	if c.AcquireTimeout <= 0 {
		return errors.New("acquire_timeout must be positive")
	}
	if c.ConnRecycle < 0 {
		return errors.New("conn_recycle must not be negative")
	}
	return nil
}

// ConfigurePool 将配置应用到 sql.DB。
// 常驻连接对应 MaxIdleConns，溢出连接归还时被关闭。
func ConfigurePool(sqlDB *sql.DB, cfg PoolConfig) {
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns())
	sqlDB.SetMaxIdleConns(cfg.MaxPoolSize)
	sqlDB.SetConnMaxLifetime(cfg.ConnRecycle)
}

// =============================================================================
// 🎫 槽位闸门
// =============================================================================

// slotGate 限制同时占用连接的调用数，等待超过 timeout 返回 ErrPoolTimeout
type slotGate struct {
	sem     *semaphore.Weighted
	size    int64
	timeout time.Duration
}

func newSlotGate(size int, timeout time.Duration) *slotGate {
	return &slotGate{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    int64(size),
		timeout: timeout,
	}
}

// acquire 获取一个槽位，返回释放函数
func (g *slotGate) acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		// 调用方自己的 ctx 已结束，不算连接池超时
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrPoolTimeout, g.timeout)
	}

	return func() { g.sem.Release(1) }, nil
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// PoolStats 连接池统计信息（更友好的格式）
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxIdleClosed      int64         `json:"max_idle_closed"`
	MaxLifetimeClosed  int64         `json:"max_lifetime_closed"`
}

func poolStatsFrom(stats sql.DBStats) PoolStats {
	return PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}
