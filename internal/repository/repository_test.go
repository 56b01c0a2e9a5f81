package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Store{},
		&model.StoreUser{},
		&model.Product{},
		&model.Order{},
		&model.OrderLineItem{},
		&model.PaymentAttempt{},
		&model.ProcessedWebhookEvent{},
	))

	return db
}
