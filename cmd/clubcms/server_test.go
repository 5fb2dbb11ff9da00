package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/api/handlers"
	"github.com/BaSui01/clubcms/config"
	"github.com/BaSui01/clubcms/internal/metrics"
	"github.com/BaSui01/clubcms/internal/server"
	"github.com/BaSui01/clubcms/internal/session"
	"github.com/BaSui01/clubcms/internal/shutdown"
)

var namespaceSeq atomic.Int64

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.URL = ""
	cfg.Database.SQLitePath = ":memory:"
	cfg.Database.AutoMigrate = true
	cfg.Admin.APIKey = "ops-key"
	cfg.Session.Secure = false
	cfg.Server.RateLimitRPS = 0
	return cfg
}

// newTestServer 组装一个使用内存 SQLite 与内存会话的 Server，不监听端口
func newTestServer(t *testing.T, coordinator *shutdown.Coordinator) (*Server, http.Handler) {
	t.Helper()

	s := NewServer(testConfig(), zap.NewNop(), nil, coordinator)
	s.namespace = fmt.Sprintf("clubcms_srv_test_%d", namespaceSeq.Add(1))
	s.metricsCollector = metrics.NewCollector(s.namespace, zap.NewNop())

	require.NoError(t, s.initStorage(context.Background()))
	s.sessions = session.NewMemoryStore(time.Hour, s.metricsCollector)
	require.NoError(t, s.store.Seed(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return s, s.buildHandler(ctx)
}

func TestServer_SQLiteHasNoConnectionManager(t *testing.T) {
	s, _ := newTestServer(t, nil)
	defer s.backend.Close()

	assert.Nil(t, s.manager)
	assert.Nil(t, s.connectionReporter())
}

func TestServer_Routes(t *testing.T) {
	s, handler := newTestServer(t, nil)
	defer s.backend.Close()

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})

	t.Run("db health without manager", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/db", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body handlers.DBStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Nil(t, body.Connections)
	})

	t.Run("terminate idle requires key", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("terminate idle without manager", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil)
		r.Header.Set("X-API-Key", "ops-key")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Connection manager not available")
	})

	t.Run("public content", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "site_title")
	})

	t.Run("admin content requires session", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestServer_ShutdownRunsCleanupOnce(t *testing.T) {
	exits := make(chan int, 2)
	coordinator := shutdown.New(zap.NewNop(), shutdown.WithExitFunc(func(code int) { exits <- code }))

	s, handler := newTestServer(t, coordinator)
	s.httpManager = server.NewManager(handler, server.Config{
		Name:            "api",
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}, zap.NewNop())
	s.registerShutdownSteps()

	done := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- coordinator.Trigger("test") }()
	}
	ran := 0
	for i := 0; i < 2; i++ {
		if <-done {
			ran++
		}
	}

	assert.Equal(t, 1, ran)
	assert.Equal(t, 0, <-exits)
	assert.Len(t, exits, 0)
	assert.Equal(t, shutdown.StateTerminated, coordinator.State())

	// 数据库与会话存储已关闭
	assert.Error(t, s.backend.Ping(context.Background()))
	assert.ErrorIs(t, s.sessions.Ping(context.Background()), session.ErrClosed)
}

// newStartableServer 返回一个可以完整 Start 的 Server：随机 HTTP 端口，不启动 metrics 服务器
func newStartableServer(t *testing.T, coordinator *shutdown.Coordinator, httpPort int) *Server {
	t.Helper()

	cfg := testConfig()
	cfg.Server.HTTPPort = httpPort
	cfg.Server.MetricsPort = 0
	cfg.Server.ShutdownTimeout = time.Second

	s := NewServer(cfg, zap.NewNop(), nil, coordinator)
	s.namespace = fmt.Sprintf("clubcms_srv_test_%d", namespaceSeq.Add(1))
	return s
}

func TestServe_SignalBeforeStartOpensNothing(t *testing.T) {
	exits := make(chan int, 1)
	coordinator := shutdown.New(zap.NewNop(), shutdown.WithExitFunc(func(code int) { exits <- code }))
	s := newStartableServer(t, coordinator, 0)

	require.True(t, coordinator.Handle(syscall.SIGTERM))

	assert.Equal(t, 0, serve(s, coordinator, exits, zap.NewNop()))
	assert.Nil(t, s.backend)
	assert.Nil(t, s.sessions)
	assert.Nil(t, s.httpManager)
}

func TestServer_SignalDuringStartReleasesComponents(t *testing.T) {
	exits := make(chan int, 1)
	coordinator := shutdown.New(zap.NewNop(), shutdown.WithExitFunc(func(code int) { exits <- code }))
	s := newStartableServer(t, coordinator, 0)
	s.registerShutdownSteps()

	// 数据库已打开，HTTP 尚未启动时收到信号
	require.NoError(t, s.initStorage(context.Background()))
	require.True(t, coordinator.Handle(syscall.SIGTERM))
	assert.Equal(t, 0, <-exits)
	assert.Error(t, s.backend.Ping(context.Background()))

	// 关闭开始后打开的组件不再交给 Server
	err := s.startHTTPServer()
	assert.ErrorIs(t, err, errShutdownRequested)
	assert.Nil(t, s.httpManager)
	assert.Equal(t, shutdown.StateTerminated, coordinator.State())
}

func TestServe_StartFailureCleansUpPartialStart(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	exits := make(chan int, 1)
	coordinator := shutdown.New(zap.NewNop(), shutdown.WithExitFunc(func(code int) { exits <- code }))
	s := newStartableServer(t, coordinator, busy.Addr().(*net.TCPAddr).Port)

	assert.Equal(t, 1, serve(s, coordinator, exits, zap.NewNop()))
	assert.Equal(t, shutdown.StateTerminated, coordinator.State())

	// 端口冲突前已经打开的数据库与会话存储被释放
	require.NotNil(t, s.backend)
	assert.Error(t, s.backend.Ping(context.Background()))
	assert.ErrorIs(t, s.sessions.Ping(context.Background()), session.ErrClosed)
	assert.Nil(t, s.httpManager)
}

func TestServe_StartThenShutdown(t *testing.T) {
	exits := make(chan int, 1)
	coordinator := shutdown.New(zap.NewNop(), shutdown.WithExitFunc(func(code int) { exits <- code }))
	s := newStartableServer(t, coordinator, 0)

	codes := make(chan int, 1)
	go func() { codes <- serve(s, coordinator, exits, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.httpManager != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, coordinator.Handle(syscall.SIGINT))
	assert.Equal(t, 0, <-codes)
	assert.False(t, s.httpManager.IsRunning())
	assert.Error(t, s.backend.Ping(context.Background()))
}
