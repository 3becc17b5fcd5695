// Package tlsutil 提供集中式 TLS 配置，
// 为文本生成后端、能力端点与托管服务商的 HTTP 客户端提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
