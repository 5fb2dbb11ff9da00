package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/internal/database"
	"github.com/BaSui01/clubcms/testutil"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockHealthCheck 模拟健康检查
type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string {
	return m.name
}

func (m *mockHealthCheck) Check(ctx context.Context) error {
	return m.err
}

// fakeReporter 记录调用次数的连接管理器替身
type fakeReporter struct {
	healthy    bool
	stats      database.ConnectionStats
	terminated int
	lastIdle   time.Duration

	healthCalls    atomic.Int32
	statsCalls     atomic.Int32
	terminateCalls atomic.Int32
}

func (f *fakeReporter) CheckConnectionHealth(context.Context) bool {
	f.healthCalls.Add(1)
	return f.healthy
}

func (f *fakeReporter) GetActiveConnections(context.Context) database.ConnectionStats {
	f.statsCalls.Add(1)
	return f.stats
}

func (f *fakeReporter) TerminateIdleConnections(_ context.Context, idle time.Duration) int {
	f.terminateCalls.Add(1)
	f.lastIdle = idle
	return f.terminated
}

func (f *fakeReporter) PoolStats() database.PoolStats {
	return database.PoolStats{MaxOpenConnections: 15, OpenConnections: 2}
}

func (f *fakeReporter) calls() int32 {
	return f.healthCalls.Load() + f.statsCalls.Load() + f.terminateCalls.Load()
}

func decodeDBStatus(t *testing.T, w *httptest.ResponseRecorder) DBStatusResponse {
	t.Helper()
	var resp DBStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)

	handler.HandleHealth(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "service": "clubcms"}, body)
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	handler.HandleHealthz(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var status ServiceHealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name           string
		setupChecks    func(*HealthHandler)
		expectedStatus int
		checkStatus    func(*testing.T, *ServiceHealthResponse)
	}{
		{
			name:           "no checks - ready",
			setupChecks:    func(h *HealthHandler) {},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *ServiceHealthResponse) {
				assert.Equal(t, "healthy", status.Status)
			},
		},
		{
			name: "all checks pass",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "database", err: nil})
				h.RegisterCheck(&mockHealthCheck{name: "session_store", err: nil})
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *ServiceHealthResponse) {
				assert.Equal(t, "healthy", status.Status)
				assert.Len(t, status.Checks, 2)
				assert.Equal(t, "pass", status.Checks["database"].Status)
				assert.Equal(t, "pass", status.Checks["session_store"].Status)
			},
		},
		{
			name: "one check fails",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(NewDatabaseHealthCheck("database", func(context.Context) error { return nil }))
				h.RegisterCheck(NewSessionStoreHealthCheck("session_store", func(context.Context) error {
					return errors.New("redis down")
				}))
			},
			expectedStatus: http.StatusServiceUnavailable,
			checkStatus: func(t *testing.T, status *ServiceHealthResponse) {
				assert.Equal(t, "unhealthy", status.Status)
				assert.Equal(t, "pass", status.Checks["database"].Status)
				assert.Equal(t, "fail", status.Checks["session_store"].Status)
				assert.Equal(t, "redis down", status.Checks["session_store"].Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(zap.NewNop())
			tt.setupChecks(h)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/ready", nil)

			h.HandleReady(w, r)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var status ServiceHealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			tt.checkStatus(t, &status)
		})
	}
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/version", nil)

	handler.HandleVersion("1.0.0", "2024-01-01T00:00:00Z", "abc123")(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", data["version"])
	assert.Equal(t, "abc123", data["git_commit"])
}

func TestHealthHandler_ConcurrentChecks(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	for i := 0; i < 10; i++ {
		handler.RegisterCheck(&mockHealthCheck{name: string(rune('a' + i))})
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/ready", nil)
			handler.HandleReady(w, r)
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

// =============================================================================
// 🧪 DBHealthHandler 测试
// =============================================================================

func TestDBHealthHandler_HandleDBHealth(t *testing.T) {
	t.Run("healthy with manager", func(t *testing.T) {
		rep := &fakeReporter{healthy: true, stats: database.ConnectionStats{Active: 1, Idle: 2, Total: 3}}
		h := NewDBHealthHandler(rep, nil, "secret", zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleDBHealth(w, httptest.NewRequest(http.MethodGet, "/health/db", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeDBStatus(t, w)
		assert.Equal(t, "ok", resp.Status)
		require.NotNil(t, resp.Connections)
		assert.Equal(t, 3, resp.Connections.Total)
		require.NotNil(t, resp.Pool)
		assert.Equal(t, 15, resp.Pool.MaxOpenConnections)
	})

	t.Run("unhealthy with manager", func(t *testing.T) {
		rep := &fakeReporter{healthy: false}
		h := NewDBHealthHandler(rep, nil, "secret", zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleDBHealth(w, httptest.NewRequest(http.MethodGet, "/health/db", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeDBStatus(t, w)
		assert.Equal(t, "error", resp.Status)
		assert.Nil(t, resp.Connections)
		assert.Zero(t, rep.statsCalls.Load())
	})

	t.Run("without manager uses ping and omits connections", func(t *testing.T) {
		h := NewDBHealthHandler(nil, func(context.Context) error { return nil }, "", zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleDBHealth(w, httptest.NewRequest(http.MethodGet, "/health/db", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeDBStatus(t, w)
		assert.Equal(t, "ok", resp.Status)
		assert.Nil(t, resp.Connections)
	})

	t.Run("ping failure", func(t *testing.T) {
		h := NewDBHealthHandler(nil, func(context.Context) error { return errors.New("disk I/O error") }, "", zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleDBHealth(w, httptest.NewRequest(http.MethodGet, "/health/db", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDBHealthHandler_TerminateIdle_Unauthorized(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		setHeader  bool
	}{
		{name: "missing header", configured: "secret"},
		{name: "wrong key", configured: "secret", header: "guess", setHeader: true},
		{name: "prefix of key", configured: "secret", header: "secre", setHeader: true},
		{name: "empty configured key rejects empty header", configured: "", header: "", setHeader: true},
		{name: "empty configured key rejects any header", configured: "", header: "secret", setHeader: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &fakeReporter{terminated: 9}
			h := NewDBHealthHandler(rep, nil, tt.configured, zap.NewNop())

			r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil)
			if tt.setHeader {
				r.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			h.HandleTerminateIdle(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			resp := decodeDBStatus(t, w)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, "Unauthorized", resp.Message)
			assert.Zero(t, rep.calls(), "rejected requests never touch the database")
		})
	}
}

func TestDBHealthHandler_TerminateIdle(t *testing.T) {
	t.Run("default idle threshold", func(t *testing.T) {
		rep := &fakeReporter{terminated: 2, stats: database.ConnectionStats{Active: 1, Total: 1}}
		h := NewDBHealthHandler(rep, nil, "secret", zap.NewNop())

		r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil)
		r.Header.Set("X-API-Key", "secret")
		w := httptest.NewRecorder()
		h.HandleTerminateIdle(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeDBStatus(t, w)
		assert.Equal(t, "ok", resp.Status)
		require.NotNil(t, resp.Terminated)
		assert.Equal(t, 2, *resp.Terminated)
		require.NotNil(t, resp.Connections)
		assert.Equal(t, 1, resp.Connections.Active)
		assert.Equal(t, 300*time.Second, rep.lastIdle)
	})

	t.Run("custom idle threshold", func(t *testing.T) {
		rep := &fakeReporter{}
		h := NewDBHealthHandler(rep, nil, "secret", zap.NewNop())

		r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle?idle_seconds=60", nil)
		r.Header.Set("X-API-Key", "secret")
		w := httptest.NewRecorder()
		h.HandleTerminateIdle(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, time.Minute, rep.lastIdle)
	})

	t.Run("invalid idle threshold", func(t *testing.T) {
		rep := &fakeReporter{}
		h := NewDBHealthHandler(rep, nil, "secret", zap.NewNop())

		r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle?idle_seconds=-5", nil)
		r.Header.Set("X-API-Key", "secret")
		w := httptest.NewRecorder()
		h.HandleTerminateIdle(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, rep.terminateCalls.Load())
	})

	t.Run("no manager", func(t *testing.T) {
		h := NewDBHealthHandler(nil, nil, "secret", zap.NewNop())

		r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil)
		r.Header.Set("X-API-Key", "secret")
		w := httptest.NewRecorder()
		h.HandleTerminateIdle(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeDBStatus(t, w)
		assert.Equal(t, "Connection manager not available", resp.Message)
	})
}

// newMockManager 基于 sqlmock 的真实连接管理器
func newMockManager(t *testing.T) (*database.ConnectionManager, sqlmock.Sqlmock) {
	t.Helper()

	_, mock, gormDB := testutil.NewMockPostgres(t)

	pool := database.DefaultPoolConfig()
	pool.PrePing = false
	backend, err := database.NewPostgresBackend(gormDB, pool, zap.NewNop())
	require.NoError(t, err)

	return database.NewConnectionManager(backend, zap.NewNop()), mock
}

func TestDBHealthHandler_TerminateIdle_RealManager(t *testing.T) {
	t.Run("bad key issues no query", func(t *testing.T) {
		mgr, mock := newMockManager(t)
		h := NewDBHealthHandler(mgr, nil, "secret", zap.NewNop())

		r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil)
		r.Header.Set("X-API-Key", "wrong")
		w := httptest.NewRecorder()
		h.HandleTerminateIdle(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("authorized request reaps and reports", func(t *testing.T) {
		mgr, mock := newMockManager(t)
		h := NewDBHealthHandler(mgr, nil, "secret", zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT pg_terminate_backend\\(pid\\) FROM pg_stat_activity").
			WithArgs(float64(300)).
			WillReturnRows(sqlmock.NewRows([]string{"pg_terminate_backend"}).AddRow(true))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT state, COUNT\\(\\*\\) FROM pg_stat_activity").
			WillReturnRows(sqlmock.NewRows([]string{"state", "count"}).
				AddRow("active", 1).
				AddRow("idle", 0))

		r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil)
		r.Header.Set("X-API-Key", "secret")
		w := httptest.NewRecorder()
		h.HandleTerminateIdle(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeDBStatus(t, w)
		require.NotNil(t, resp.Terminated)
		assert.Equal(t, 1, *resp.Terminated)
		assert.Equal(t, 1, resp.Connections.Total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
