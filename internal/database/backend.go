package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// 🧩 存储后端
// =============================================================================

// Kind 后端类型
type Kind string

const (
	// KindPooled 带连接池的 PostgreSQL
	KindPooled Kind = "postgres"
	// KindSimple 本地嵌入式 SQLite，无连接池维护
	KindSimple Kind = "sqlite"
)

// TxFunc 在一个连接上执行的数据库操作
type TxFunc func(tx *gorm.DB) error

// Executor 执行数据库操作的能力。仓储层只依赖这个接口。
type Executor interface {
	Execute(ctx context.Context, fn TxFunc) error
}

// Backend 存储后端
type Backend interface {
	Executor
	Kind() Kind
	DB() *gorm.DB
	Ping(ctx context.Context) error
	Stats() PoolStats
	Close() error
}

// SessionAdmin 服务端会话管理能力，只有带连接池的后端实现
type SessionAdmin interface {
	// TerminateIdleSessions 终止空闲超过 idle 的会话，返回终止数量
	TerminateIdleSessions(ctx context.Context, idle time.Duration) (int, error)
	// SessionStates 按状态统计当前用户的会话数
	SessionStates(ctx context.Context) (map[string]int, error)
}

const terminateIdleQuery = `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
WHERE state = 'idle'
  AND usename = current_user
  AND pid <> pg_backend_pid()
  AND state_change < NOW() - make_interval(secs => ?)`

const sessionStatesQuery = `SELECT state, COUNT(*) FROM pg_stat_activity
WHERE usename = current_user
GROUP BY state`

// =============================================================================
// 🐘 PostgreSQL 后端
// =============================================================================

// PostgresBackend 带连接池的 PostgreSQL 后端
type PostgresBackend struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	pool   PoolConfig
	gate   *slotGate
	logger *zap.Logger

	configureOnce sync.Once
	closeOnce     sync.Once
	closeErr      error
}

// NewPostgresBackend 包装已打开的 GORM 实例，并在首次使用前应用连接池配置
func NewPostgresBackend(db *gorm.DB, pool PoolConfig, logger *zap.Logger) (*PostgresBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := pool.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	b := &PostgresBackend{
		db:     db,
		sqlDB:  sqlDB,
		pool:   pool,
		gate:   newSlotGate(pool.MaxOpenConns(), pool.AcquireTimeout),
		logger: logger.With(zap.String("component", "db_backend"), zap.String("kind", string(KindPooled))),
	}

	b.configureOnce.Do(func() {
		ConfigurePool(sqlDB, pool)
		b.logger.Info("database pool configured",
			zap.Int("pool_size", pool.MaxPoolSize),
			zap.Int("max_overflow", pool.MaxOverflow),
			zap.Duration("pool_timeout", pool.AcquireTimeout),
			zap.Duration("pool_recycle", pool.ConnRecycle),
			zap.Bool("pre_ping", pool.PrePing),
		)
	})

	return b, nil
}

// OpenPostgres 连接 PostgreSQL 并创建后端
func OpenPostgres(dsn string, pool PoolConfig, logger *zap.Logger) (*PostgresBackend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return NewPostgresBackend(db, pool, logger)
}

// Kind 返回后端类型
func (b *PostgresBackend) Kind() Kind { return KindPooled }

// DB 返回 GORM 实例
func (b *PostgresBackend) DB() *gorm.DB { return b.db }

// PoolConfig 返回生效的连接池配置
func (b *PostgresBackend) PoolConfig() PoolConfig { return b.pool }

// Execute 占用一个连接槽位，在专用连接上执行 fn。
// 槽位等待超时返回 ErrPoolTimeout。
func (b *PostgresBackend) Execute(ctx context.Context, fn TxFunc) error {
	release, err := b.gate.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return b.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		if b.pool.PrePing {
			if pinger, ok := tx.Statement.ConnPool.(interface {
				PingContext(ctx context.Context) error
			}); ok {
				if err := pinger.PingContext(ctx); err != nil {
					return fmt.Errorf("pre-ping failed: %w: %w", ErrStaleConnection, err)
				}
			}
		}
		return fn(tx)
	})
}

// Ping 检查数据库连接
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.sqlDB.PingContext(ctx)
}

// Stats 返回连接池统计信息
func (b *PostgresBackend) Stats() PoolStats {
	return poolStatsFrom(b.sqlDB.Stats())
}

// Close 关闭连接池，可重复调用
func (b *PostgresBackend) Close() error {
	b.closeOnce.Do(func() {
		b.logger.Info("closing database pool")
		b.closeErr = b.sqlDB.Close()
	})
	return b.closeErr
}

// TerminateIdleSessions 在事务中终止空闲会话。出错时事务回滚。
func (b *PostgresBackend) TerminateIdleSessions(ctx context.Context, idle time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.pool.AcquireTimeout)
	defer cancel()

	terminated := 0
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := tx.Raw(terminateIdleQuery, idle.Seconds()).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ok sql.NullBool
			if err := rows.Scan(&ok); err != nil {
				return err
			}
			if ok.Valid && ok.Bool {
				terminated++
			}
		}
		return rows.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("terminate idle sessions: %w", err)
	}
	return terminated, nil
}

// SessionStates 按状态统计当前数据库用户的会话
func (b *PostgresBackend) SessionStates(ctx context.Context) (map[string]int, error) {
	states := make(map[string]int)
	err := b.Execute(ctx, func(tx *gorm.DB) error {
		rows, err := tx.Raw(sessionStatesQuery).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				state sql.NullString
				count int
			)
			if err := rows.Scan(&state, &count); err != nil {
				return err
			}
			if state.Valid {
				states[state.String] += count
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// =============================================================================
// 🪶 SQLite 后端
// =============================================================================

// SQLiteBackend 本地文件存储，没有连接池配置、重试和会话回收
type SQLiteBackend struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenSQLite 打开 SQLite 数据库，path 为 ":memory:" 时使用内存库
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 单写者
	sqlDB.SetMaxOpenConns(1)

	logger.Info("using local sqlite store", zap.String("path", path))

	return &SQLiteBackend{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "db_backend"), zap.String("kind", string(KindSimple))),
	}, nil
}

// Kind 返回后端类型
func (b *SQLiteBackend) Kind() Kind { return KindSimple }

// DB 返回 GORM 实例
func (b *SQLiteBackend) DB() *gorm.DB { return b.db }

// Execute 直接执行 fn，不重试
func (b *SQLiteBackend) Execute(ctx context.Context, fn TxFunc) error {
	return fn(b.db.WithContext(ctx))
}

// Ping 检查数据库连接
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.sqlDB.PingContext(ctx)
}

// Stats 返回连接统计信息
func (b *SQLiteBackend) Stats() PoolStats {
	return poolStatsFrom(b.sqlDB.Stats())
}

// Close 关闭数据库，可重复调用
func (b *SQLiteBackend) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.sqlDB.Close()
	})
	return b.closeErr
}

var (
	_ Backend      = (*PostgresBackend)(nil)
	_ SessionAdmin = (*PostgresBackend)(nil)
	_ Backend      = (*SQLiteBackend)(nil)
)
