package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
)

type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	UpdatePrices(ctx context.Context, tx *gorm.DB, productID string, prices model.PriceList) error
	IncrementAmountSold(ctx context.Context, tx *gorm.DB, productID string, delta int64) error
	Publish(ctx context.Context, tx *gorm.DB, productID string) error
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) UpdatePrices(ctx context.Context, tx *gorm.DB, productID string, prices model.PriceList) error {
	result := tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"prices":     prices,
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

// IncrementAmountSold does a read-modify-write of the product's sold
// counter: fetch the current value, add the delta, write it back.
func (r *productRepoImpl) IncrementAmountSold(ctx context.Context, tx *gorm.DB, productID string, delta int64) error {
	var product model.Product
	err := tx.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"amount_sold": product.AmountSold + delta,
			"updated_at":  time.Now(),
		}).Error
}

// Publish stamps the product so inventory changes are visible outside draft
// state.
func (r *productRepoImpl) Publish(ctx context.Context, tx *gorm.DB, productID string) error {
	return tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"published_at": time.Now(),
		}).Error
}
