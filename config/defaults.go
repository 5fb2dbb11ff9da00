// =============================================================================
// 📦 ClubCMS 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/clubcms/internal/database"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Session:   DefaultSessionConfig(),
		Admin:     AdminConfig{},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8080,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		CORSAllowedOrigins: []string{},
		RateLimitRPS:       50,
		RateLimitBurst:     100,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	pool := database.DefaultPoolConfig()
	retry := database.DefaultRetryPolicy()
	return DatabaseConfig{
		URL:                 "",
		SQLitePath:          "instance/clubcms.sqlite",
		PoolSize:            pool.MaxPoolSize,
		MaxOverflow:         pool.MaxOverflow,
		PoolTimeout:         pool.AcquireTimeout,
		PoolRecycle:         pool.ConnRecycle,
		PrePing:             pool.PrePing,
		MaxRetries:          retry.MaxAttempts,
		RetryDelay:          retry.BaseDelay,
		ReapBeforeRetryIdle: database.DefaultReapBeforeRetryIdle,
		ReapInterval:        0,
		ReapIdleAfter:       5 * time.Minute,
		AutoMigrate:         true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "",
		Password:     "",
		DB:           0,
		TLS:          false,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		CookieName: "clubcms_session",
		TTL:        24 * time.Hour,
		Secure:     true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "clubcms",
		SampleRate:   0.1,
	}
}
