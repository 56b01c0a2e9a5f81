package client

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
)

func InitMysqlClient(databaseURL string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.Store{},
		&model.StoreUser{},
		&model.Product{},
		&model.Order{},
		&model.OrderLineItem{},
		&model.PaymentAttempt{},
		&model.ProcessedWebhookEvent{},
	); err != nil {
		log.Fatal(err)
	}

	return db
}
