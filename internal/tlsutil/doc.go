// Package tlsutil 集中管理 ClubCMS 的 TLS 配置，
// 供运维 CLI 的 HTTP 客户端与 Redis 会话连接使用（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
