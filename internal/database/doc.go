// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，为审计库提供
sqlite、postgres、mysql 三种驱动。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：最大空闲连接数、最大打开连接数、连接最大生命周期、
    空闲超时与健康检查间隔。
  - NewDialector：按驱动名构造 Dialector；sqlite 为纯 Go 实现，
    自动创建库文件目录并开启 busy_timeout 与 WAL。

# 主要能力

  - 健康检查：后台定时 PingContext 探活，Close 时退出。
  - 统计采集：GetStats 返回结构化的连接池运行指标，供 metrics 使用。
*/
package database
