// 版权所有 2024 ChatFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开对话历史 SQL 存储所用的 GORM 连接并管理连接池。

# 概述

Open 按 config.DatabaseConfig.Driver 选择方言（sqlite 使用纯 Go 的
glebarez/sqlite，postgres 与 mysql 使用 gorm 官方驱动），随后由
PoolManager 统一配置连接池、后台健康检查与关闭。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、StatsCollector()、Close()。
  - PoolConfig：最大空闲连接数、最大打开连接数、生命周期与健康检查间隔。
*/
package database
