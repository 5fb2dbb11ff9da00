package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/api/handlers"
	"github.com/BaSui01/clubcms/config"
	"github.com/BaSui01/clubcms/internal/content"
	"github.com/BaSui01/clubcms/internal/database"
	"github.com/BaSui01/clubcms/internal/metrics"
	"github.com/BaSui01/clubcms/internal/migration"
	"github.com/BaSui01/clubcms/internal/server"
	"github.com/BaSui01/clubcms/internal/session"
	"github.com/BaSui01/clubcms/internal/shutdown"
	"github.com/BaSui01/clubcms/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 ClubCMS 的主服务器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	namespace string

	// 存储
	backend  database.Backend
	manager  *database.ConnectionManager // 仅 PostgreSQL
	store    *content.Store
	sessions session.Store

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	metricsCollector *metrics.Collector
	coordinator      *shutdown.Coordinator

	rateLimiterCancel context.CancelFunc

	// mu 保护上面的组件字段：启动流程写入，清理步骤读取
	mu        sync.Mutex
	stepsOnce sync.Once
}

// errShutdownRequested 启动过程中收到了关闭请求
var errShutdownRequested = errors.New("shutdown requested during startup")

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, coordinator *shutdown.Coordinator) *Server {
	return &Server{
		cfg:         cfg,
		logger:      logger,
		telemetry:   otelProviders,
		namespace:   "clubcms",
		coordinator: coordinator,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务。清理步骤在打开任何组件之前注册，每个步骤只关闭已经交给
// Server 的组件；关闭开始后新打开的组件由启动流程自行释放。
func (s *Server) Start() error {
	if s.coordinator != nil {
		s.registerShutdownSteps()
	}
	// 关闭已经开始时不再打开任何组件
	if err := s.adopt(func() {}); err != nil {
		return err
	}

	// 1. 指标收集器
	s.metricsCollector = metrics.NewCollector(s.namespace, s.logger)

	// 2. 数据库与连接管理器
	if err := s.initStorage(context.Background()); err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	// 3. 会话存储
	sessions := session.Open(s.cfg.Redis, s.cfg.Session.TTL, s.logger, s.metricsCollector)
	if err := s.adopt(func() { s.sessions = sessions }); err != nil {
		_ = sessions.Close()
		return err
	}

	// 4. HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if s.coordinator != nil {
		go s.watchServerErrors()
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("database", string(s.backend.Kind())),
		zap.String("sessions", s.sessions.Name()),
	)
	return nil
}

// =============================================================================
// 🗄️ 存储初始化
// =============================================================================

// initStorage 打开数据库。PostgreSQL 在建池前应用连接池参数，并由 ConnectionManager
// 提供重试与空闲会话回收；SQLite 直接执行。
func (s *Server) initStorage(ctx context.Context) error {
	dbCfg := s.cfg.Database

	if !dbCfg.UsePostgres() {
		backend, err := database.OpenSQLite(dbCfg.SQLitePath, s.logger)
		if err != nil {
			return err
		}
		if dbCfg.AutoMigrate {
			if err := content.AutoMigrate(backend.DB()); err != nil {
				_ = backend.Close()
				return fmt.Errorf("sqlite auto-migrate: %w", err)
			}
		}
		if err := s.adopt(func() {
			s.backend = backend
			s.store = content.NewStore(backend, s.logger)
		}); err != nil {
			_ = backend.Close()
			return err
		}
		return nil
	}

	if dbCfg.AutoMigrate {
		if err := s.migratePostgres(ctx); err != nil {
			return err
		}
	}

	backend, err := database.OpenPostgres(dbCfg.DSN(), dbCfg.PoolConfig(), s.logger)
	if err != nil {
		return err
	}

	opts := []database.ManagerOption{
		database.WithRetryPolicy(dbCfg.RetryPolicy()),
		database.WithReapBeforeRetry(dbCfg.ReapBeforeRetryIdle),
		database.WithMaintenance(dbCfg.ReapInterval, dbCfg.ReapIdleAfter),
	}
	if s.metricsCollector != nil {
		opts = append(opts, database.WithMetrics(s.metricsCollector))
	}

	// 维护协程随 ConnectionManager 启动，因此只在接管成功时创建
	if err := s.adopt(func() {
		s.backend = backend
		s.manager = database.NewConnectionManager(backend, s.logger, opts...)
		s.store = content.NewStore(s.manager, s.logger)
	}); err != nil {
		_ = backend.Close()
		return err
	}
	return nil
}

// adopt 在关闭尚未开始时执行 set，把新组件交给 Server；否则返回
// errShutdownRequested，组件由调用方释放
func (s *Server) adopt(set func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coordinator != nil && s.coordinator.State() != shutdown.StateIdle {
		return errShutdownRequested
	}
	set()
	return nil
}

func (s *Server) migratePostgres(ctx context.Context) error {
	migrator, err := migration.NewMigratorFromConfig(s.cfg)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	s.logger.Info("database migrations applied")
	return nil
}

// connectionReporter 没有连接管理器时返回 nil 接口，而不是装着 nil 指针的接口
func (s *Server) connectionReporter() handlers.ConnectionReporter {
	if s.manager == nil {
		return nil
	}
	return s.manager
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 构建全部 API 处理器
func (s *Server) routes() handlers.Routes {
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewDatabaseHealthCheck("database", s.backend.Ping))
	if s.sessions != nil {
		health.RegisterCheck(handlers.NewSessionStoreHealthCheck("sessions_"+s.sessions.Name(), s.sessions.Ping))
	}

	return handlers.Routes{
		Health:    health,
		DBHealth:  handlers.NewDBHealthHandler(s.connectionReporter(), s.backend.Ping, s.cfg.Admin.APIKey, s.logger),
		Content:   handlers.NewContentHandler(s.store, s.logger),
		Auth:      handlers.NewAuthHandler(s.store, s.sessions, s.cfg.Session, s.logger),
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// buildHandler 注册路由并套上中间件链
func (s *Server) buildHandler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.routes().Register(mux)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
	}
	if s.metricsCollector != nil {
		middlewares = append(middlewares, MetricsMiddleware(s.metricsCollector))
	}
	middlewares = append(middlewares,
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)
	return Chain(mux, middlewares...)
}

// startHTTPServer 启动 API 服务器
func (s *Server) startHTTPServer() error {
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())

	serverConfig := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	m := server.NewManager(s.buildHandler(rateLimiterCtx), serverConfig, s.logger)
	if err := m.Start(); err != nil {
		rateLimiterCancel()
		return err
	}
	if err := s.adopt(func() {
		s.httpManager = m
		s.rateLimiterCancel = rateLimiterCancel
	}); err != nil {
		rateLimiterCancel()
		_ = m.Shutdown(context.Background())
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 在独立端口暴露 /metrics，端口为 0 时不启动
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	serverConfig := server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	m := server.NewManager(mux, serverConfig, s.logger)
	if err := m.Start(); err != nil {
		return err
	}
	if err := s.adopt(func() { s.metricsManager = m }); err != nil {
		_ = m.Shutdown(context.Background())
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// registerShutdownSteps 按依赖逆序注册清理：先停止接收请求，最后关闭数据库与遥测。
// 步骤在执行时读取组件，尚未打开的组件跳过。重复调用只注册一次。
func (s *Server) registerShutdownSteps() {
	s.stepsOnce.Do(func() {
		c := s.coordinator
		c.Register("http_server", func(ctx context.Context) error {
			s.mu.Lock()
			m, cancel := s.httpManager, s.rateLimiterCancel
			s.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			if m == nil {
				return nil
			}
			return m.Shutdown(ctx)
		})
		c.Register("metrics_server", func(ctx context.Context) error {
			s.mu.Lock()
			m := s.metricsManager
			s.mu.Unlock()
			if m == nil {
				return nil
			}
			return m.Shutdown(ctx)
		})
		c.Register("sessions", func(context.Context) error {
			s.mu.Lock()
			sessions := s.sessions
			s.mu.Unlock()
			if sessions == nil {
				return nil
			}
			return sessions.Close()
		})
		c.Register("database", func(ctx context.Context) error {
			s.mu.Lock()
			manager, backend := s.manager, s.backend
			s.mu.Unlock()
			switch {
			case manager != nil:
				manager.Cleanup(ctx)
			case backend != nil:
				return backend.Close()
			}
			return nil
		})
		c.Register("telemetry", s.telemetry.Shutdown)
	})
}

// watchServerErrors HTTP 服务异常退出时触发关闭流程
func (s *Server) watchServerErrors() {
	var metricsErrs <-chan error
	if s.metricsManager != nil {
		metricsErrs = s.metricsManager.Errors()
	}

	var err error
	select {
	case err = <-s.httpManager.Errors():
	case err = <-metricsErrs:
	case <-s.coordinator.Done():
		return
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.coordinator.Trigger("server error: " + err.Error())
	}
}
