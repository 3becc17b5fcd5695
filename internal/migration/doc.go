// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理审计库 generations 表的 Schema 迁移，支持
SQLite、PostgreSQL 与 MySQL，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌。连接经由 internal/database
的 Dialector 打开，与审计存储使用同一套驱动；SQLite 为纯 Go 实现。
审计存储自身在每次运行时也会 EnsureSchema，因此迁移是可选的运维
步骤，而不是启动前提。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close。
  - Config：数据库类型、DSN、迁移表名与锁超时。
  - CLI：`imagine3d migrate <action>` 的格式化输出层。
*/
package migration
