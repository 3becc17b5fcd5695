/*
Package gateway 实现能力网关：把能力 ID 解析为实时连接，并提供同步调用。

# 概述

每次流水线运行通过 Connector.Connect 建立一个 Stub：对调用方配置的
每个能力 ID 解析端点并并发探测，只有探测成功的能力出现在
HasConnection 中。探测失败只记录日志，不返回错误。

# 端点与传输

  - http(s)://  — HTTPDialer，GET /manifest 探测，POST /execution 调用
  - ws(s)://    — WSDialer，每次调用一次 JSON 请求/响应
  - provider:// — ProviderDialer，进程内托管服务商（llm/image、llm/threed）

端点优先取 Config.Endpoints，否则由 URLTemplate 的 {id} 替换得到。

# 结果约定

Invoke 返回 (nil, nil) 表示能力没有返回结果对象；返回 Data 为空的
Result 表示结果对象中没有数据。两者由调用方区分处理。
*/
package gateway
