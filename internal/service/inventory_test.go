package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/repository"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/task"
)

type inventoryFixture struct {
	db       *gorm.DB
	executor *task.Manual
	hook     *InventoryHook
	orders   repository.OrderRepository
	products repository.ProductRepository
}

func newInventoryFixture(t *testing.T) *inventoryFixture {
	db := newTestDB(t)
	executor := task.NewManual()
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)

	return &inventoryFixture{
		db:       db,
		executor: executor,
		hook:     NewInventoryHook(db, orderRepo, productRepo, executor, slog.Default()),
		orders:   orderRepo,
		products: productRepo,
	}
}

func intPtr(v int64) *int64 { return &v }

func (fx *inventoryFixture) seedPaidOrder(t *testing.T, items []*model.OrderLineItem) {
	t.Helper()

	require.NoError(t, fx.db.Create(&model.Order{
		ID:       "ord_1",
		StoreID:  "store_1",
		Status:   model.OrderStatusComplete,
		Currency: "usd",
	}).Error)
	for _, item := range items {
		item.OrderID = "ord_1"
	}
	require.NoError(t, fx.db.Create(&items).Error)
}

func TestInventoryHookDecrementsOnce(t *testing.T) {
	fx := newInventoryFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.db.Create(&model.Product{
		ID:      "prod_1",
		StoreID: "store_1",
		Name:    "Poster",
		Prices: model.PriceList{
			{PriceID: "price_1", UnitAmount: 5000, Currency: "usd", Inventory: intPtr(10)},
		},
	}).Error)
	fx.seedPaidOrder(t, []*model.OrderLineItem{
		{ProductID: "prod_1", PriceID: "price_1", Quantity: 3},
	})

	fx.hook.OnOrderWritten("ord_1")
	assert.Equal(t, 1, fx.executor.Drain())

	product, err := fx.products.FindByID(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), *product.Prices[0].Inventory)
	assert.Equal(t, int64(3), product.AmountSold)
	assert.NotNil(t, product.PublishedAt)

	order, err := fx.orders.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.True(t, order.Extra.InventoryDecremented)
	assert.NotNil(t, order.Extra.InventoryDecrementedAt)

	// Second invocation is a no-op: the flag gates it out.
	fx.hook.OnOrderWritten("ord_1")
	fx.executor.Drain()

	product, err = fx.products.FindByID(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), *product.Prices[0].Inventory, "no double decrement")
	assert.Equal(t, int64(3), product.AmountSold, "no double sold count")
}

func TestInventoryHookIgnoresUnpaidOrder(t *testing.T) {
	fx := newInventoryFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.db.Create(&model.Product{
		ID:      "prod_1",
		StoreID: "store_1",
		Name:    "Poster",
		Prices: model.PriceList{
			{PriceID: "price_1", UnitAmount: 5000, Currency: "usd", Inventory: intPtr(10)},
		},
	}).Error)
	require.NoError(t, fx.db.Create(&model.Order{
		ID:       "ord_1",
		StoreID:  "store_1",
		Status:   model.OrderStatusPending,
		Currency: "usd",
	}).Error)
	require.NoError(t, fx.db.Create(&model.OrderLineItem{
		OrderID: "ord_1", ProductID: "prod_1", PriceID: "price_1", Quantity: 3,
	}).Error)

	fx.hook.OnOrderWritten("ord_1")
	fx.executor.Drain()

	product, err := fx.products.FindByID(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), *product.Prices[0].Inventory)

	order, err := fx.orders.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.False(t, order.Extra.InventoryDecremented)
}

func TestInventoryHookUntrackedInventoryNoSoldDelta(t *testing.T) {
	fx := newInventoryFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.db.Create(&model.Product{
		ID:      "prod_1",
		StoreID: "store_1",
		Name:    "Digital Download",
		Prices: model.PriceList{
			{PriceID: "price_1", UnitAmount: 900, Currency: "usd"}, // inventory untracked
		},
	}).Error)
	fx.seedPaidOrder(t, []*model.OrderLineItem{
		{ProductID: "prod_1", PriceID: "price_1", Quantity: 5},
	})

	fx.hook.OnOrderWritten("ord_1")
	fx.executor.Drain()

	product, err := fx.products.FindByID(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), product.AmountSold, "untracked items contribute no sold delta")

	order, err := fx.orders.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.False(t, order.Extra.InventoryDecremented, "nothing persisted, order stays retryable")
}

func TestInventoryHookUnmatchedPriceNotMarkedProcessed(t *testing.T) {
	fx := newInventoryFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.db.Create(&model.Product{
		ID:      "prod_1",
		StoreID: "store_1",
		Name:    "Poster",
		Prices: model.PriceList{
			{PriceID: "price_other", UnitAmount: 5000, Currency: "usd", Inventory: intPtr(10)},
		},
	}).Error)
	fx.seedPaidOrder(t, []*model.OrderLineItem{
		{ProductID: "prod_1", PriceID: "price_unknown", Quantity: 2},
	})

	fx.hook.OnOrderWritten("ord_1")
	fx.executor.Drain()

	order, err := fx.orders.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.False(t, order.Extra.InventoryDecremented,
		"no adjustment persisted, a future corrective write may retry")
}

func TestInventoryHookIsolatesProductFailures(t *testing.T) {
	fx := newInventoryFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.db.Create(&model.Product{
		ID:      "prod_ok",
		StoreID: "store_1",
		Name:    "Poster",
		Prices: model.PriceList{
			{PriceID: "price_ok", UnitAmount: 5000, Currency: "usd", Inventory: intPtr(10)},
		},
	}).Error)
	// prod_missing has no row: its items fail, prod_ok must still be adjusted.
	fx.seedPaidOrder(t, []*model.OrderLineItem{
		{ProductID: "prod_missing", PriceID: "price_gone", Quantity: 1},
		{ProductID: "prod_ok", PriceID: "price_ok", Quantity: 2},
	})

	fx.hook.OnOrderWritten("ord_1")
	fx.executor.Drain()

	product, err := fx.products.FindByID(ctx, "prod_ok")
	require.NoError(t, err)
	assert.Equal(t, int64(8), *product.Prices[0].Inventory)
	assert.Equal(t, int64(2), product.AmountSold)

	order, err := fx.orders.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.True(t, order.Extra.InventoryDecremented, "partial success still marks the order processed")
}

func TestInventoryHookHandlesConcurrentTriggers(t *testing.T) {
	fx := newInventoryFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.db.Create(&model.Product{
		ID:      "prod_1",
		StoreID: "store_1",
		Name:    "Poster",
		Prices: model.PriceList{
			{PriceID: "price_1", UnitAmount: 5000, Currency: "usd", Inventory: intPtr(10)},
		},
	}).Error)
	fx.seedPaidOrder(t, []*model.OrderLineItem{
		{ProductID: "prod_1", PriceID: "price_1", Quantity: 1},
	})

	// Every order write re-triggers the hook; only the first pass may act.
	fx.hook.OnOrderWritten("ord_1")
	fx.hook.OnOrderWritten("ord_1")
	fx.hook.OnOrderWritten("ord_1")
	assert.Equal(t, 3, fx.executor.Drain())

	product, err := fx.products.FindByID(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), *product.Prices[0].Inventory)
	assert.Equal(t, int64(1), product.AmountSold)
}
