// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 ClubCMS 提供 TracerProvider 和 MeterProvider。
// 数据库执行 span（db.execute）通过全局 provider 导出。
package telemetry
