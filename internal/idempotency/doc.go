// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 idempotency 为生成请求提供幂等重放能力。

客户端通过 Idempotency-Key 请求头标识一次生成；同一调用方在 TTL
内使用相同的键与相同的请求体重试时，直接返回缓存的响应，不会再次
调用能力或写入审计记录。键被复用于不同请求体时返回 ErrConflict。

# 实现

  - NewRedisManager：基于 go-redis，使用 SETNX 保证先写入者生效，
    适合多实例部署。
  - NewMemoryManager：进程内 map，后台定期清理过期条目。
  - LookupTyped / SaveTyped：泛型包装，直接读写响应类型。
*/
package idempotency
