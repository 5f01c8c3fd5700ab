package database

import (
	"fmt"
	"log"
	"time"

	"ygo-trader/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// 连接池上限必须盖住排名 worker 数（14）+ 调度器自身，超配会耗尽连接，
// 属于配置错误，直接失败而不是降级

const (
	maxIdleConns = 5
	maxOpenConns = 15
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.Set{},
		&models.Card{},
		&models.Printing{},
		&models.Condition{},
		&models.SKU{},
		&models.SKUListing{},
		&models.SKUListingSnapshot{},
		&models.CardSale{},
		&models.SKUMaxProfit{},
		&models.CardSyncData{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database initialized successfully")
	return db, nil
}
