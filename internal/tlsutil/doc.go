// Package tlsutil 集中管理出站连接的 TLS 设置：
// OpenAI 兼容服务的 HTTP 客户端与启用 TLS 的 Redis 连接。
// 统一要求 TLS 1.2+，TLS 1.2 下只使用 AEAD 密码套件。
package tlsutil
