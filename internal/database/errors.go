package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// =============================================================================
// 🚦 错误分类
// =============================================================================

// ErrorKind 数据库错误类别
type ErrorKind int

const (
	// ErrorKindNone 没有错误
	ErrorKindNone ErrorKind = iota
	// ErrorKindTransient 连接池耗尽 / 连接断开，稍后重试可能恢复
	ErrorKindTransient
	// ErrorKindPermanent 其他数据库错误，立即返回给调用方
	ErrorKindPermanent
)

// String 返回类别名称
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindTransient:
		return "transient"
	case ErrorKindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

var (
	// ErrPoolTimeout 等待连接池槽位超时
	ErrPoolTimeout = errors.New("database: timed out waiting for a connection pool slot")

	// ErrStaleConnection 借出的连接未通过预检 ping
	ErrStaleConnection = errors.New("database: stale connection")

	// ErrManagerClosed 连接管理器已关闭
	ErrManagerClosed = errors.New("database: connection manager is closed")
)

// transientSQLStates PostgreSQL 中表示"稍后重试"的 SQLSTATE
var transientSQLStates = map[string]struct{}{
	"53300": {}, // too_many_connections
	"53400": {}, // configuration_limit_exceeded
	"57P01": {}, // admin_shutdown (包括 pg_terminate_backend)
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
}

// transientPatterns 驱动未给出结构化错误码时的兜底匹配
var transientPatterns = []string{
	"max clients reached",
	"connection to server",
	"too many clients",
	"remaining connection slots are reserved",
	"bad connection",
	"connection reset by peer",
	"broken pipe",
}

// Classify 判断错误类别。
// 结构化错误（哨兵错误、SQLSTATE）优先；只有驱动没有提供错误码时才退回到文本匹配。
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	if errors.Is(err, ErrPoolTimeout) ||
		errors.Is(err, ErrStaleConnection) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return ErrorKindTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isTransientSQLState(pgErr.Code) {
			return ErrorKindTransient
		}
		return ErrorKindPermanent
	}

	// 建连失败（包括 connect_timeout 触发的内部超时）可重试；
	// 调用方 ctx 是否已取消由 Retrier 判断
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) {
		return ErrorKindTransient
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindPermanent
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return ErrorKindTransient
		}
	}

	return ErrorKindPermanent
}

// IsTransient 是否为可重试的连接池错误
func IsTransient(err error) bool {
	return Classify(err) == ErrorKindTransient
}

func isTransientSQLState(code string) bool {
	if _, ok := transientSQLStates[code]; ok {
		return true
	}
	// Class 08: connection_exception
	return strings.HasPrefix(code, "08")
}

// IsUniqueViolation 是否为唯一约束冲突（PostgreSQL 23505 或 SQLite UNIQUE constraint）
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
