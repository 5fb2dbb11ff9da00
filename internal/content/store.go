package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/clubcms/internal/database"
)

// =============================================================================
// 🗃️ 内容仓储
// =============================================================================

// Store 内容仓储。所有语句都经由 database.Executor 执行，
// PostgreSQL 下因此获得连接池重试，SQLite 下直接执行。
type Store struct {
	exec   database.Executor
	logger *zap.Logger
	now    func() time.Time
}

// NewStore 创建内容仓储
func NewStore(exec database.Executor, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		exec:   exec,
		logger: logger.With(zap.String("component", "content")),
		now:    time.Now,
	}
}

func (s *Store) run(ctx context.Context, fn database.TxFunc) error {
	return s.exec.Execute(ctx, fn)
}

// atomic 在单个事务中执行 fn
func (s *Store) atomic(ctx context.Context, fn database.TxFunc) error {
	return s.exec.Execute(ctx, func(db *gorm.DB) error {
		return db.Transaction(fn)
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func conflict(err error) error {
	if database.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// AutoMigrate 为 SQLite 创建全部表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, conflict(notFound(err)))
}
