// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 ClubCMS 服务端程序入口。

# 概述

cmd/clubcms 提供 HTTP API 服务、数据库初始化与迁移、空闲会话回收、
健康检查和版本查询等子命令。配置来自 YAML 文件与环境变量，日志使用 zap，
指标通过独立端口以 Prometheus 格式暴露。

# 核心类型

  - Server      — 组装数据库后端、ConnectionManager、会话存储与 HTTP 路由
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、init-db、migrate、reap、health、version
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、OTelTracing、CORS、RateLimiter（基于 IP）
  - 存储选择：配置了 DATABASE_URL 时使用带连接池的 PostgreSQL 与
    ConnectionManager，否则使用本地 SQLite
  - 优雅关闭：shutdown.Coordinator 收到 SIGINT/SIGTERM 后依次关闭 HTTP、
    Metrics、会话存储、数据库与遥测，只执行一次
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
