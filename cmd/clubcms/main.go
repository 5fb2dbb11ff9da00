// =============================================================================
// ClubCMS 主入口
// =============================================================================
// 完整服务入口点，包含 HTTP 服务、数据库运维、健康检查、Prometheus 指标
//
// 使用方法:
//
//	clubcms serve                        # 启动服务
//	clubcms serve --config config.yaml   # 指定配置文件
//	clubcms init-db                      # 建表并写入默认数据
//	clubcms migrate up                   # 运行数据库迁移
//	clubcms reap --idle-seconds 300      # 回收空闲数据库会话
//	clubcms health                       # 健康检查
//	clubcms version                      # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/clubcms/api/handlers"
	"github.com/BaSui01/clubcms/config"
	"github.com/BaSui01/clubcms/internal/content"
	"github.com/BaSui01/clubcms/internal/database"
	"github.com/BaSui01/clubcms/internal/migration"
	"github.com/BaSui01/clubcms/internal/shutdown"
	"github.com/BaSui01/clubcms/internal/telemetry"
	"github.com/BaSui01/clubcms/internal/tlsutil"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "init-db":
		runInitDB(os.Args[2:])
	case "reap":
		runReap(os.Args[2:])
	case "health":
		runHealthCheck(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting ClubCMS",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	// 清理完成后由 main 退出，保证日志先刷出
	exitCh := make(chan int, 1)
	coordinator := shutdown.New(logger,
		shutdown.WithTimeout(2*cfg.Server.ShutdownTimeout),
		shutdown.WithExitFunc(func(code int) { exitCh <- code }),
	)
	coordinator.Install()

	srv := NewServer(cfg, logger, otelProviders, coordinator)
	code := serve(srv, coordinator, exitCh, logger)
	logger.Info("ClubCMS stopped", zap.Int("exit_code", code))
	_ = logger.Sync()
	os.Exit(code)
}

// serve 启动服务并等待关闭协调器完成清理，返回进程退出码。
// 启动失败时通过协调器释放已经打开的组件，然后以 1 退出。
func serve(srv *Server, coordinator *shutdown.Coordinator, exitCh <-chan int, logger *zap.Logger) int {
	if err := srv.Start(); err != nil {
		if errors.Is(err, errShutdownRequested) {
			logger.Info("Shutdown requested during startup")
			return <-exitCh
		}
		logger.Error("Failed to start server", zap.Error(err))
		coordinator.Trigger("startup failed")
		<-exitCh
		return 1
	}
	return <-exitCh
}

// =============================================================================
// 🗄️ init-db 命令
// =============================================================================

func runInitDB(args []string) {
	fs := flag.NewFlagSet("init-db", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	if err := initDatabase(context.Background(), cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "init-db failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Database initialized")
}

// initDatabase 建表（PostgreSQL 走迁移，SQLite 走 AutoMigrate）并写入默认数据
func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var backend database.Backend

	if cfg.Database.UsePostgres() {
		migrator, err := migration.NewMigratorFromConfig(cfg)
		if err != nil {
			return err
		}
		upErr := migrator.Up(ctx)
		migrator.Close()
		if upErr != nil {
			return fmt.Errorf("apply migrations: %w", upErr)
		}

		pg, err := database.OpenPostgres(cfg.Database.DSN(), database.MinimalPoolConfig(), logger)
		if err != nil {
			return err
		}
		backend = pg
	} else {
		lite, err := database.OpenSQLite(cfg.Database.SQLitePath, logger)
		if err != nil {
			return err
		}
		if err := content.AutoMigrate(lite.DB()); err != nil {
			lite.Close()
			return fmt.Errorf("auto-migrate: %w", err)
		}
		backend = lite
	}
	defer backend.Close()

	return content.NewStore(backend, logger).Seed(ctx)
}

// =============================================================================
// 🧹 reap 命令
// =============================================================================

func runReap(args []string) {
	fs := flag.NewFlagSet("reap", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	apiKey := fs.String("api-key", os.Getenv("ADMIN_API_KEY"), "Admin API key (default: $ADMIN_API_KEY)")
	idleSeconds := fs.Int("idle-seconds", handlers.DefaultIdleSeconds, "Terminate sessions idle longer than this")
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout")
	fs.Parse(args)

	client := tlsutil.SecureHTTPClient(*timeout)
	resp, err := requestTerminateIdle(context.Background(), client, *addr, *apiKey, *idleSeconds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reap failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}

// requestTerminateIdle 调用 POST /health/db/terminate-idle
func requestTerminateIdle(ctx context.Context, client *http.Client, addr, apiKey string, idleSeconds int) (*handlers.DBStatusResponse, error) {
	endpoint := strings.TrimRight(addr, "/") + "/health/db/terminate-idle?" +
		url.Values{"idle_seconds": {strconv.Itoa(idleSeconds)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body handlers.DBStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &body, fmt.Errorf("status %d: %s", resp.StatusCode, body.Message)
	}
	return &body, nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	db := fs.Bool("db", false, "Check /health/db instead of /health")
	fs.Parse(args)

	path := "/health"
	if *db {
		path = "/health/db"
	}

	client := tlsutil.SecureHTTPClient(5 * time.Second)
	if err := checkHealth(client, strings.TrimRight(*addr, "/")+path); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func checkHealth(client *http.Client, endpoint string) error {
	resp, err := client.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("ClubCMS %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`ClubCMS - club website content service

Usage:
  clubcms <command> [options]

Commands:
  serve     Start the ClubCMS server
  init-db   Create tables and seed default settings and admin account
  migrate   Database migration commands (PostgreSQL)
  reap      Terminate idle database sessions on a running server
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'serve' and 'init-db':
  --config <path>   Path to configuration file (YAML)

Options for 'reap':
  --addr <url>            Server address (default http://localhost:8080)
  --api-key <key>         Admin API key (default $ADMIN_API_KEY)
  --idle-seconds <n>      Idle threshold in seconds (default 300)

Examples:
  clubcms serve --config /etc/clubcms/config.yaml
  clubcms init-db
  clubcms migrate up
  clubcms reap --addr https://club.example.com --idle-seconds 600
  clubcms health --db
  clubcms version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
