// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 imagine3d 服务端程序入口。

# 概述

cmd/imagine3d 装配生成流水线（提示词扩写 → 文生图 → 图生 3D → 审计记录）
并通过 HTTP API 与命令行暴露。程序支持 YAML 配置文件加载、
结构化日志（zap）、Prometheus 指标与 OpenTelemetry 链路追踪。

# 核心类型

  - Server      — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - app         — 一次进程内共享的组件集合（数据库、扩写器、能力网关、流水线）
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（默认）、generate、history、migrate、health、version
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、CORS、
    RateLimiter（基于 IP）、APIKeyAuth、JWTAuth（user_id 作为调用方身份）、
    Metrics、OTelTracing
  - 幂等：Idempotency-Key 请求头，启用 Redis 时跨实例共享
  - 产物下载：/outputs/ 只读文件服务
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
