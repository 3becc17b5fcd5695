// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是文本生成后端的公共基础层：共享配置、错误映射与
错误消息解析。具体后端位于 tgi 与 openaicompat 子包。

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage — 解析 OpenAI 与 TGI 两种错误响应格式
  - ChooseModel / Endpoint — 模型选择与 URL 拼接
*/
package providers
