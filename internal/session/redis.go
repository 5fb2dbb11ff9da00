package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/config"
	"github.com/BaSui01/clubcms/internal/tlsutil"
)

// =============================================================================
// 💾 Redis 会话存储
// =============================================================================

const keyPrefix = "clubcms:session:"

// RedisStore 基于 Redis 的会话存储，过期交给 Redis TTL。
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics MetricsRecorder
	mu      sync.RWMutex
	closed  bool
}

// NewRedisStore 连接 Redis 并确认可用
func NewRedisStore(cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger, metrics MetricsRecorder) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.RedisTLSConfig(cfg.Addr)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisStore{
		client:  client,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "session")),
		metrics: metrics,
	}
	s.logger.Info("redis session store initialized",
		zap.String("addr", cfg.Addr),
		zap.Bool("tls", cfg.TLS),
		zap.Int("pool_size", cfg.PoolSize),
	)
	return s, nil
}

// Name 返回 "redis"
func (s *RedisStore) Name() string { return "redis" }

// Create 创建会话
func (s *RedisStore) Create(ctx context.Context, username string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	sess := newSession(username, s.ttl, time.Now())
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		s.logger.Error("session create failed", zap.Error(err))
		return nil, fmt.Errorf("session create failed: %w", err)
	}
	return sess, nil
}

// Get 获取会话
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if !validID(id) {
		s.metrics.RecordSessionMiss(s.Name())
		return nil, ErrNotFound
	}

	val, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.RecordSessionMiss(s.Name())
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("session get failed", zap.Error(err))
		return nil, fmt.Errorf("session get failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	s.metrics.RecordSessionHit(s.Name())
	return &sess, nil
}

// Delete 删除会话
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if !validID(id) {
		return nil
	}
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("session delete failed: %w", err)
	}
	return nil
}

// Ping 检查 Redis 连接
func (s *RedisStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.client.Ping(ctx).Err()
}

// Close 关闭 Redis 客户端
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing redis session store")
	return s.client.Close()
}

// =============================================================================
// 🔧 构建
// =============================================================================

// Open 按配置选择会话存储：Redis 地址为空或连接失败时退回内存存储。
func Open(cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger, metrics MetricsRecorder) Store {
	if cfg.Addr == "" {
		logger.Info("redis not configured, using in-memory sessions")
		return NewMemoryStore(ttl, metrics)
	}
	store, err := NewRedisStore(cfg, ttl, logger, metrics)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory sessions",
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
		return NewMemoryStore(ttl, metrics)
	}
	return store
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
