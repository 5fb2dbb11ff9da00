// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package types 提供 ClubCMS 的 API 层共享类型。

Error / ErrorCode 为结构化错误，携带 HTTP 状态码与 Retryable 标记。
数据库瞬时错误重试用尽后由处理器转换为 503 DB_UNAVAILABLE。
*/
package types
