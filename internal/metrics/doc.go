// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、数据库
弹性层、连接池与登录会话。

# 概述

Collector 使用 promauto 自动注册，所有指标按 namespace 隔离。
Collector 实现 database.MetricsRecorder，可直接交给连接管理器。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 重试指标：按 outcome（success/retry/exhausted/permanent）计数。
  - 空闲回收：终止的会话总数；槽位等待超时次数。
  - 会话 Gauge：服务端 active/idle 会话数，连接池打开/空闲连接数。
  - 登录会话：按存储类型统计命中与未命中。
*/
package metrics
