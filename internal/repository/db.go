package repository

import (
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bili-danmu/internal/model"
)

const defaultDSN = "danmu_user:danmu_pass123@tcp(localhost:3306)/danmu?charset=utf8mb4&parseTime=True&loc=Local"

// NewDB 基于环境变量 DANMU_MYSQL_DSN 打开 MySQL 连接。
func NewDB() (*gorm.DB, error) {
	dsn := os.Getenv("DANMU_MYSQL_DSN")
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(32)
	sqlDB.SetMaxIdleConns(8)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 建表（幂等）。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.EventRecord{}, &model.SubscriberCursor{})
}
