package db

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenGorm wraps an existing *sql.DB so GORM-backed repositories share the
// same connection pool as the database/sql ones.
func OpenGorm(conn *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: conn}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// 表结构由 InitDB 管理
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM over existing connection: %w", err)
	}
	return gdb, nil
}
