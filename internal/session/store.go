package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// 🔑 会话存储
// =============================================================================

var (
	// ErrNotFound 会话不存在或已过期
	ErrNotFound = errors.New("session not found")
	// ErrClosed 存储已关闭
	ErrClosed = errors.New("session store is closed")
)

// Session 一次管理员登录
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired 报告会话在 now 时是否已失效
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store 会话存储
type Store interface {
	// Create 为 username 创建会话
	Create(ctx context.Context, username string) (*Session, error)
	// Get 返回未过期的会话，否则 ErrNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// Delete 删除会话，不存在时不报错
	Delete(ctx context.Context, id string) error
	// Ping 检查后端可用性
	Ping(ctx context.Context) error
	// Name 存储名称，用于日志与指标
	Name() string
	Close() error
}

// MetricsRecorder 会话命中统计
type MetricsRecorder interface {
	RecordSessionHit(store string)
	RecordSessionMiss(store string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSessionHit(string)  {}
func (nopMetrics) RecordSessionMiss(string) {}

func newSession(username string, ttl time.Duration, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// validID 只接受 UUID，避免任意字符串拼进 Redis key
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
