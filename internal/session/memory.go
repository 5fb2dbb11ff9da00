package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内会话存储，Redis 未配置或不可用时使用。
// 多实例部署下会话不共享。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	metrics  MetricsRecorder
	closed   bool
}

// NewMemoryStore 创建内存会话存储
func NewMemoryStore(ttl time.Duration, metrics MetricsRecorder) *MemoryStore {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		metrics:  metrics,
	}
}

// Name 返回 "memory"
func (s *MemoryStore) Name() string { return "memory" }

// Create 创建会话
func (s *MemoryStore) Create(ctx context.Context, username string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	sess := newSession(username, s.ttl, s.now())
	s.sessions[sess.ID] = sess
	return sess, nil
}

// Get 获取会话，过期会话顺带删除
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	sess, ok := s.sessions[id]
	if !ok {
		s.metrics.RecordSessionMiss(s.Name())
		return nil, ErrNotFound
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, id)
		s.metrics.RecordSessionMiss(s.Name())
		return nil, ErrNotFound
	}
	s.metrics.RecordSessionHit(s.Name())
	cp := *sess
	return &cp, nil
}

// Delete 删除会话
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.sessions, id)
	return nil
}

// Sweep 清除所有过期会话，返回清除数量
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len 当前保存的会话数（含未清除的过期会话）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping 内存存储始终可用
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close 关闭存储并丢弃全部会话
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}
