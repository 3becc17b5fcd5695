// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 pipeline 实现三阶段生成流水线：提示词扩写 → 文生图 → 图生 3D，
随后写入一条审计记录并组装响应。

# 阶段结果

每个阶段的结果是 StageOutcome：Success(value)、Skipped(reason) 或
Failed(reason) 三者之一。Skipped 表示能力未配置或未连接，不是错误；
Failed 表示已尝试但没有得到可用输出。两者在响应与审计记录中
分别渲染为 "Skipped: ..." 与 "Error: ..." 标记，status_message 只在
组装响应时由 StageOutcome 生成。

# 控制流

严格线性、单次执行：

  - 扩写：空提示词、扩写器不可用、扩写出错分别使用固定回退文本，
    文生图阶段总会执行。
  - 文生图与图生 3D 共用 invokeCapability：检查连接、构造载荷、调用、
    落盘并分类结果。
  - 图生 3D 仅在文生图成功且文件确实存在时调用。
  - 审计写入失败只记录日志，Execute 从不返回错误。

# 可观测性

每个阶段运行在 OpenTelemetry span（pipeline.expand、pipeline.image、
pipeline.model_3d、pipeline.audit）中，并通过 Observer 上报结果与耗时。
*/
package pipeline
