// Package sqlitedb 测试用的SQLite数据库
// 与生产共用GORM模型、迁移与配置，单连接保证事务串行执行
package sqlitedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/mysql"
)

// New 在t.TempDir()中创建已迁移的数据库，测试结束自动关闭
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "biblioteca.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), mysql.Options(gormlogger.Silent))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite没有行锁，单连接让并发事务排队
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, mysql.AutoMigrate(db))
	return db
}
