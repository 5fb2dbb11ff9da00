package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/internal/database"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// ServiceName /health 返回的服务名
const ServiceName = "clubcms"

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger *zap.Logger
	checks []HealthCheck
	mu     sync.RWMutex
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ServiceHealthResponse 健康状态响应
type ServiceHealthResponse struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger: logger.With(zap.String("component", "health")),
		checks: make([]HealthCheck, 0),
	}
}

// RegisterCheck 注册健康检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth GET /health，进程存活即返回 ok，不访问数据库
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

// HandleHealthz GET /healthz（Kubernetes 活跃度探针）
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// HandleReady GET /ready，运行全部已注册检查
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult),
	}

	allHealthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{
			Status:  "pass",
			Latency: latency.String(),
		}

		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			allHealthy = false

			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}

		status.Checks[check.Name()] = result
	}

	if !allHealthy {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion GET /version
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// DatabaseHealthCheck 数据库健康检查
type DatabaseHealthCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewDatabaseHealthCheck 创建数据库健康检查
func NewDatabaseHealthCheck(name string, ping func(ctx context.Context) error) *DatabaseHealthCheck {
	return &DatabaseHealthCheck{
		name: name,
		ping: ping,
	}
}

func (c *DatabaseHealthCheck) Name() string {
	return c.name
}

func (c *DatabaseHealthCheck) Check(ctx context.Context) error {
	return c.ping(ctx)
}

// SessionStoreHealthCheck 会话存储（Redis 或内存）健康检查
type SessionStoreHealthCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewSessionStoreHealthCheck 创建会话存储健康检查
func NewSessionStoreHealthCheck(name string, ping func(ctx context.Context) error) *SessionStoreHealthCheck {
	return &SessionStoreHealthCheck{
		name: name,
		ping: ping,
	}
}

func (c *SessionStoreHealthCheck) Name() string {
	return c.name
}

func (c *SessionStoreHealthCheck) Check(ctx context.Context) error {
	return c.ping(ctx)
}

// =============================================================================
// 🗄️ 数据库运维 Handler
// =============================================================================

// DefaultIdleSeconds terminate-idle 未指定 idle_seconds 时的阈值
const DefaultIdleSeconds = 300

// ConnectionReporter 连接管理器在运维接口上暴露的能力
type ConnectionReporter interface {
	CheckConnectionHealth(ctx context.Context) bool
	GetActiveConnections(ctx context.Context) database.ConnectionStats
	TerminateIdleConnections(ctx context.Context, idle time.Duration) int
	PoolStats() database.PoolStats
}

// DBHealthHandler /health/db 与 /health/db/terminate-idle
type DBHealthHandler struct {
	manager ConnectionReporter
	ping    func(ctx context.Context) error
	apiKey  []byte
	logger  *zap.Logger
}

// DBStatusResponse 数据库运维接口响应
type DBStatusResponse struct {
	Status      string                    `json:"status"`
	Message     string                    `json:"message,omitempty"`
	Terminated  *int                      `json:"terminated,omitempty"`
	Connections *database.ConnectionStats `json:"connections,omitempty"`
	Pool        *database.PoolStats       `json:"pool,omitempty"`
}

// NewDBHealthHandler 创建数据库运维处理器。
// manager 为 nil 时（SQLite 后端）健康检查退化为 ping，terminate-idle 返回 400。
func NewDBHealthHandler(manager ConnectionReporter, ping func(ctx context.Context) error, apiKey string, logger *zap.Logger) *DBHealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBHealthHandler{
		manager: manager,
		ping:    ping,
		apiKey:  []byte(apiKey),
		logger:  logger.With(zap.String("component", "db_health")),
	}
}

// HandleDBHealth GET /health/db
func (h *DBHealthHandler) HandleDBHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	healthy := false
	switch {
	case h.manager != nil:
		healthy = h.manager.CheckConnectionHealth(ctx)
	case h.ping != nil:
		if err := h.ping(ctx); err != nil {
			h.logger.Error("database ping failed", zap.Error(err))
		} else {
			healthy = true
		}
	}

	if !healthy {
		WriteJSON(w, http.StatusInternalServerError, DBStatusResponse{
			Status:  "error",
			Message: "Database connection failed",
		})
		return
	}

	resp := DBStatusResponse{
		Status:  "ok",
		Message: "Database connection healthy",
	}
	if h.manager != nil {
		conns := h.manager.GetActiveConnections(ctx)
		pool := h.manager.PoolStats()
		resp.Connections = &conns
		resp.Pool = &pool
	}
	WriteJSON(w, http.StatusOK, resp)
}

// HandleTerminateIdle POST /health/db/terminate-idle，需要 X-API-Key
func (h *DBHealthHandler) HandleTerminateIdle(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn("rejected terminate-idle request", zap.String("remote_addr", r.RemoteAddr))
		WriteJSON(w, http.StatusUnauthorized, DBStatusResponse{
			Status:  "error",
			Message: "Unauthorized",
		})
		return
	}

	if h.manager == nil {
		WriteJSON(w, http.StatusBadRequest, DBStatusResponse{
			Status:  "error",
			Message: "Connection manager not available",
		})
		return
	}

	idleSeconds := DefaultIdleSeconds
	if raw := r.URL.Query().Get("idle_seconds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteJSON(w, http.StatusBadRequest, DBStatusResponse{
				Status:  "error",
				Message: "idle_seconds must be a positive integer",
			})
			return
		}
		idleSeconds = n
	}

	ctx := r.Context()
	terminated := h.manager.TerminateIdleConnections(ctx, time.Duration(idleSeconds)*time.Second)
	conns := h.manager.GetActiveConnections(ctx)

	WriteJSON(w, http.StatusOK, DBStatusResponse{
		Status:      "ok",
		Terminated:  &terminated,
		Connections: &conns,
	})
}

// authorized 常量时间比较 X-API-Key；未配置密钥时一律拒绝
func (h *DBHealthHandler) authorized(r *http.Request) bool {
	if len(h.apiKey) == 0 {
		return false
	}
	got := []byte(r.Header.Get("X-API-Key"))
	return subtle.ConstantTimeCompare(got, h.apiKey) == 1
}
