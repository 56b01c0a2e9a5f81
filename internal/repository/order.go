package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByPaymentLinkID(ctx context.Context, paymentLinkID string) (*model.Order, error)
	LockForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Order, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error
	UpdateShipping(ctx context.Context, tx *gorm.DB, id string, addr *model.Address, buyerEmail string) error
	AppendPaymentAttempt(ctx context.Context, tx *gorm.DB, attempt *model.PaymentAttempt) error
	CreateLineItems(ctx context.Context, tx *gorm.DB, items []*model.OrderLineItem) error
	MergeExtra(ctx context.Context, id string, patch *model.OrderExtra) error
	MergeExtraTx(ctx context.Context, tx *gorm.DB, order *model.Order, patch *model.OrderExtra) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("PaymentAttempts").
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByPaymentLinkID(ctx context.Context, paymentLinkID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("payment_link_id = ?", paymentLinkID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// rowLock adds FOR UPDATE where the dialect supports it. sqlite (tests) has
// no row locks; its single-writer model covers the same guarantee there.
func rowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockForUpdate re-fetches the order with its line items under a row lock.
// The lock serializes concurrent reconciliation attempts on the same order
// for the duration of the surrounding transaction.
func (r *orderRepoImpl) LockForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Order, error) {
	var order model.Order
	err := rowLock(tx.WithContext(ctx)).
		Preload("LineItems").
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *orderRepoImpl) UpdateShipping(ctx context.Context, tx *gorm.DB, id string, addr *model.Address, buyerEmail string) error {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if addr != nil {
		updates["shipping_address"] = addr
	}
	if buyerEmail != "" {
		updates["buyer_email"] = buyerEmail
	}

	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *orderRepoImpl) AppendPaymentAttempt(ctx context.Context, tx *gorm.DB, attempt *model.PaymentAttempt) error {
	return tx.WithContext(ctx).Create(attempt).Error
}

func (r *orderRepoImpl) CreateLineItems(ctx context.Context, tx *gorm.DB, items []*model.OrderLineItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

// MergeExtra applies patch onto the order's extra bag with read-merge-write
// under a row lock, so concurrent writers (webhook handler, fee retriever,
// inventory hook) never clobber each other's keys.
func (r *orderRepoImpl) MergeExtra(ctx context.Context, id string, patch *model.OrderExtra) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		err := rowLock(tx).
			Where("id = ?", id).
			First(&order).Error
		if err != nil {
			return err
		}

		return r.MergeExtraTx(ctx, tx, &order, patch)
	})
}

// MergeExtraTx merges within a caller-held transaction whose row lock covers
// the order.
func (r *orderRepoImpl) MergeExtraTx(ctx context.Context, tx *gorm.DB, order *model.Order, patch *model.OrderExtra) error {
	order.Extra.Merge(patch)

	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"extra":      order.Extra,
			"updated_at": time.Now(),
		}).Error
}
