package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlitePragmas 让多个请求并发写入同一个库文件时等待而不是立即报错
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// NewDialector 返回驱动对应的 GORM Dialector。
// sqlite 使用纯 Go 实现，并在需要时创建库文件所在目录。
func NewDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		if !isMemoryDSN(dsn) {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
			dsn = withPragmas(dsn)
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", driver)
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

// OpenSQL 通过 GORM Dialector 打开底层 *sql.DB，供迁移等只需要
// database/sql 的组件使用，保证与审计库注册的是同一套驱动。
func OpenSQL(driver, dsn string) (*sql.DB, error) {
	dialector, err := NewDialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db.DB()
}
