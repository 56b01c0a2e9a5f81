package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
)

type StoreRepository interface {
	Upsert(ctx context.Context, store *model.Store) error
	Get(ctx context.Context, storeID string) (*model.Store, error)
	ConfirmedEmails(ctx context.Context, storeID string) ([]string, error)
}

type storeRepoImpl struct {
	db *gorm.DB
}

func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepoImpl{
		db: db,
	}
}

func (r *storeRepoImpl) Upsert(ctx context.Context, store *model.Store) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":                 store.Name,
			"connected_account_id": store.ConnectedAccountID,
			"support_email":        store.SupportEmail,
			"fee_overrides":        store.FeeOverrides,
			"updated_at":           time.Now(),
		}),
	}).Create(&store).Error
}

func (r *storeRepoImpl) Get(ctx context.Context, storeID string) (*model.Store, error) {
	var store model.Store
	err := r.db.WithContext(ctx).
		Where("id = ?", storeID).
		First(&store).Error
	if err != nil {
		return nil, err
	}

	return &store, nil
}

// ConfirmedEmails returns the store's purchase-notification recipients:
// every confirmed store user plus the support address when set.
func (r *storeRepoImpl) ConfirmedEmails(ctx context.Context, storeID string) ([]string, error) {
	var store model.Store
	err := r.db.WithContext(ctx).
		Where("id = ?", storeID).
		First(&store).Error
	if err != nil {
		return nil, err
	}

	var users []*model.StoreUser
	err = r.db.WithContext(ctx).
		Where("store_id = ? AND confirmed = ?", storeID, true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(users)+1)
	for _, u := range users {
		if u.Email != "" {
			emails = append(emails, u.Email)
		}
	}
	if store.SupportEmail != "" {
		emails = append(emails, store.SupportEmail)
	}

	return emails, nil
}
