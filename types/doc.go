// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 imagine3d 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 pipeline、gateway、llm、
api 等上层模块提供统一的错误与上下文契约。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - Context 传播 — WithTraceID / WithRequestID / WithUserID / WithRunID

# 使用约定

上游后端（文本生成、能力网关）返回的错误统一包装为 *Error，
API 层通过 Code 与 HTTPStatus 决定响应格式。
*/
package types
