// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package config 提供 ClubCMS 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → CLUBCMS_ 前缀环境变量 → 托管平台通用变量
// （DATABASE_URL、ADMIN_API_KEY、PORT、REDIS_*）的顺序叠加。
// DATABASE_URL 为空时使用本地 SQLite，连接池、重试与空闲回收全部关闭。
package config
