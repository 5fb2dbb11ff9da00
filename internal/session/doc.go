// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 session 保存管理员登录会话。

会话 ID 为 UUID，通过 Cookie 下发。配置了 Redis 时使用 RedisStore，
依赖 Redis 键过期；未配置或启动时连不上 Redis 时退回 MemoryStore。
两种存储都通过 MetricsRecorder 记录命中与未命中。
*/
package session
