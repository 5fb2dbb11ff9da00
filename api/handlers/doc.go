// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handlers 提供 ClubCMS HTTP API 的请求处理器。

# 概述

所有 Handler 遵循标准 net/http 接口，路由由 Routes.Register 注册到
Go 1.22 风格的 ServeMux（方法 + 路径参数）。内容接口统一使用
Response 信封；数据库运维接口（/health/db）返回扁平的 DBStatusResponse。

# 核心类型

  - HealthHandler：/health、/healthz、/ready、/version
  - DBHealthHandler：/health/db 与 /health/db/terminate-idle（X-API-Key）
  - ContentHandler：页面、评论、设置、团队、联系表单、活动、图库
  - AuthHandler：登录、登出、会话校验中间件 RequireSession
  - Response / ErrorInfo：统一 JSON 响应结构

# 错误映射

WriteStoreError 把仓储层错误翻译为 types.Error：校验失败 400，
不存在 404，唯一键冲突 409，重试用尽的瞬时数据库错误 503
DB_UNAVAILABLE（retryable），其余 500 且不向客户端暴露细节。
*/
package handlers
