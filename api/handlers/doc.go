// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 handlers 提供 imagine3d 的 HTTP 处理器，基于标准库 net/http。

# 概述

处理器只负责 HTTP 边界：解析请求、解析调用方、组装运行配置、
调用流水线并统一输出 JSON。流水线阶段的失败不会变成 HTTP 错误，
而是体现在响应的路径标记与 status_message 中。

# 核心类型

  - GenerationHandler：POST /api/v1/generations 运行流水线，
    支持 Idempotency-Key 重放；GET 列表与详情读取审计记录。
  - UserConfigHandler：按调用方读写能力 ID 列表，
    修改只影响之后开始的运行。
  - HealthHandler：存活与就绪检查，区分关键检查与可选检查。
  - Response / ErrorInfo：统一响应结构，错误码映射到 HTTP 状态码。
*/
package handlers
