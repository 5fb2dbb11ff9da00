// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供数据库连接的弹性层：连接池配置、瞬时错误重试、
空闲会话回收、会话健康报告以及清理。

# 概述

后端分为两类：带连接池的 PostgreSQL（PostgresBackend）与本地
SQLite（SQLiteBackend）。只有 PostgresBackend 实现 SessionAdmin，
因此空闲回收与连接池配置对 SQLite 后端在类型层面就不存在。

ConnectionManager 包装带连接池的后端，所有语句通过 Execute 执行：
连接池耗尽或连接断开时按线性退避重试，重试前尽力回收空闲会话。

# 核心类型

  - PoolConfig：连接池配置，启动时构建一次，之后不可变。
  - Retrier / RetryPolicy：有界重试，退避时间 BaseDelay * attempt。
  - Classify / ErrorKind：优先使用 SQLSTATE 等结构化错误码，
    驱动未提供时才退回到错误文本匹配。
  - ConnectionManager：重试、空闲回收、会话统计与清理。
  - Executor：仓储层依赖的最小接口。

# 主要能力

  - 槽位闸门：并发占用超过 MaxPoolSize+MaxOverflow 时等待，
    超过 AcquireTimeout 返回 ErrPoolTimeout（可重试）。
  - 空闲回收：TerminateIdleConnections 在事务中调用
    pg_terminate_backend，失败时回滚并返回 0。
  - 健康报告：GetActiveConnections 查询失败返回 -1 计数。
  - 后台维护：可选的定时回收与连接池指标记录。
*/
package database
