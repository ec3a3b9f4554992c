// Copyright (c) BatchFlow Authors
// Licensed under the MIT License.

/*
包 database 为 SQL 缓存后端提供 GORM 连接：按驱动名选择方言，
并通过 Pool 管理连接池参数、后台探活与统计上报。

# 核心类型

  - Config：驱动（postgres / mysql / sqlite）、DSN 与连接池配置。
  - Pool：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、Stats()、Close()；
    HealthCheckInterval > 0 时后台探活，WithStatsReporter 接收每次探活后的统计。
  - PoolConfig：最大空闲/打开连接数、生命周期、健康检查间隔。

# 使用方式

	pool, err := database.Open(cfg.Database, logger, database.WithStatsReporter(report))
	store, err := cache.NewSQLStore(pool.DB(), true)

SQLite 使用纯 Go 的 glebarez/sqlite 驱动，无需 cgo。
*/
package database
