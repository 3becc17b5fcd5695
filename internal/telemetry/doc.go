// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 imagine3d 提供集中式的 TracerProvider 和 MeterProvider 配置，
// 流水线各阶段的 span 经由全局 TracerProvider 导出。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
