// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供提示词扩写所需的文本生成接入层。

# 概述

扩写器只需要"给定渲染好的对话模板，返回生成文本"这一项能力，
因此本包的 [Provider] 是原始文本补全接口，而不是聊天接口：
对话模板的渲染与助手回复的截取由 expander 包完成。

# 核心类型

  - [Provider]：Generate / HealthCheck / Name
  - [GenerateRequest]：Prompt、MaxNewTokens、Temperature、TopK、TopP、DoSample
  - [GenerateResponse]：包含回显输入的完整文本
  - [Error]：统一错误，携带 ErrorCode、HTTP 状态与可重试标记

# 子包

  - providers/tgi：Hugging Face text-generation-inference
  - providers/openaicompat：OpenAI 兼容 /v1/completions（vLLM、llama.cpp server）
  - factory：按名称创建 Provider
  - image、threed：文生图与图生 3D 的服务商实现，由 gateway 包装为能力
*/
package llm
