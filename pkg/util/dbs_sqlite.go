package util

import (
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase 打开会话数据库。默认 sqlite 内存库，进程退出即丢弃；
// driver 为 mysql / pg 时连接外部库。
func InitDatabase(driver, dsn string, debug bool) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := createDatabaseInstance(cfg, driver, dsn)
	if err != nil {
		zap.L().Error("open database failed", zap.String("driver", driver), zap.Error(err))
		return nil, err
	}
	return db, nil
}

func createDatabaseInstance(cfg *gorm.Config, driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "pg":
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	if dsn == "" {
		// 共享缓存的内存库，多连接看到同一份数据
		dsn = "file::memory:?cache=shared"
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}
