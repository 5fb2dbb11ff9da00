// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 提供 PostgreSQL Schema 迁移管理，基于 golang-migrate
与内嵌的 SQL 文件实现。

本地 SQLite 库不走迁移，由 init-db 通过 gorm AutoMigrate 建表。

# 核心类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info/Close。
  - DefaultMigrator：使用 pgx 的 database/sql 驱动打开连接，
    通过 iofs 读取 migrations/postgres 下的文件。
  - CLI：clubcms migrate 子命令的格式化输出层。
*/
package migration
