// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、
生成流水线、审计写入、幂等缓存与数据库连接池。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，同时实现 pipeline.Observer，
    由流水线在每个阶段结束时回调。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 流水线指标：pipeline_stage_total{stage,outcome}、
    pipeline_stage_duration_seconds{stage}、pipeline_runs_total、
    pipeline_run_duration_seconds。
  - 审计指标：audit_writes_total{status}。
  - 幂等缓存：重放与首次请求计数。
  - 数据库指标：打开、空闲、使用中的连接数。
*/
package metrics
