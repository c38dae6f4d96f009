package migrate

import (
	"database/sql"
	"fmt"

	"pontos-api/internal/cities"
	"pontos-api/internal/logger"
)

// EnsureSchema：为每个启用城市创建点位分区表与索引
// 背景：首次运行自动建表，保障后续写入与查询；分区表名来自编译期注册表，可安全拼接
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；禁用城市的历史表不在此处清理
func EnsureSchema(db *sql.DB) error {
	for _, c := range cities.Enabled() {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				type TEXT NOT NULL,
				name TEXT NOT NULL,
				address TEXT NOT NULL DEFAULT '',
				complement TEXT NOT NULL DEFAULT '',
				hours TEXT NOT NULL DEFAULT '',
				donation_kinds TEXT[] NOT NULL,
				contact_name TEXT NOT NULL DEFAULT '',
				contact_phone TEXT NOT NULL DEFAULT '',
				capacity INT,
				lat DOUBLE PRECISION NOT NULL,
				lng DOUBLE PRECISION NOT NULL,
				city_slug TEXT NOT NULL,
				version INT NOT NULL DEFAULT 1,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, c.Partition),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created ON %s(created_at DESC)`, c.Partition, c.Partition),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type ON %s(type)`, c.Partition, c.Partition),
		}
		for i, s := range stmts {
			logger.L().Debug("schema_exec", "city", c.Slug, "idx", i)
			if _, err := db.Exec(s); err != nil {
				return err
			}
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
