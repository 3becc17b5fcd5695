// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 提供文生图服务抽象。

# 概述

本包定义图像生成的请求/响应模型与 Provider 接口，屏蔽服务商在
API 协议与异步轮询上的差异。gateway 包通过 provider://flux 端点
把 FluxProvider 暴露为文生图能力。

# 核心接口

  - Provider：Generate 与 Name 两个方法。
  - GenerateRequest / GenerateResponse / ImageData。
  - FluxProvider：Black Forest Labs Flux，提交任务后按 PollInterval
    轮询 polling_url，直到 Ready 或失败。
*/
package image
