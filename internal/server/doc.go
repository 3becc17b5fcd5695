// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 概述

imagine3d 同时运行 API 服务与 Prometheus 指标服务，两者各由一个
Manager 管理。WaitForShutdown 统一等待信号或任一服务异常，
然后关闭全部服务。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Addr 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小
    与优雅关闭超时。写超时默认较长，以覆盖完整的生成流水线。
*/
package server
