package service

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/repository"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/task"
)

const reconcileTimeout = 60 * time.Second

// InventoryHook performs the one-time stock adjustment the first time an
// order reaches a paid state. It is triggered on every order write but runs
// asynchronously, so the triggering request is never delayed.
type InventoryHook struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	executor    task.Executor
	logger      *slog.Logger
}

func NewInventoryHook(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	executor task.Executor,
	logger *slog.Logger,
) *InventoryHook {
	return &InventoryHook{
		db:          db,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		executor:    executor,
		logger:      logger,
	}
}

// OnOrderWritten schedules a reconciliation pass for the order.
// Fire-and-forget: errors are logged inside the task.
func (h *InventoryHook) OnOrderWritten(orderID string) {
	h.executor.Schedule(0, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		h.Reconcile(ctx, orderID)
	})
}

// Reconcile re-fetches the order canonically under a row lock and, if it is
// paid and not yet decremented, applies the stock adjustment. The row lock
// serializes rapid successive invocations so only one passes the gate.
func (h *InventoryHook) Reconcile(ctx context.Context, orderID string) {
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := h.orderRepo.LockForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		// Idempotency gate: decided on the canonically re-fetched state,
		// never on the in-memory result of the triggering write.
		if !order.IsPaid() || order.Extra.InventoryDecremented {
			return nil
		}

		anySucceeded := h.adjustStock(ctx, tx, order)
		if !anySucceeded {
			// Nothing persisted (e.g. every item unmatched): leave the flag
			// unset so a future corrective write can retry.
			h.logger.Warn("no inventory adjustments persisted, not marking order processed",
				"order_id", order.ID)
			return nil
		}

		now := time.Now()
		return h.orderRepo.MergeExtraTx(ctx, tx, order, &model.OrderExtra{
			InventoryDecremented:   true,
			InventoryDecrementedAt: &now,
		})
	})
	if err != nil {
		h.logger.Error("inventory reconciliation failed",
			"order_id", orderID, "action", "reconcile", "error", err)
	}
}

// adjustStock decrements tracked price inventory and accumulates per-product
// sold counters. Each product is processed independently: one product's
// failure never aborts its siblings. Returns whether any persistence step
// succeeded.
func (h *InventoryHook) adjustStock(ctx context.Context, tx *gorm.DB, order *model.Order) bool {
	itemsByProduct := map[string][]*model.OrderLineItem{}
	for i := range order.LineItems {
		item := &order.LineItems[i]
		if item.ProductID == "" {
			h.logger.Warn("line item has no product reference, skipping",
				"order_id", order.ID, "price_id", item.PriceID)
			continue
		}
		itemsByProduct[item.ProductID] = append(itemsByProduct[item.ProductID], item)
	}

	anySucceeded := false
	for productID, items := range itemsByProduct {
		if h.adjustProduct(ctx, tx, order.ID, productID, items) {
			anySucceeded = true
		}
	}

	return anySucceeded
}

func (h *InventoryHook) adjustProduct(ctx context.Context, tx *gorm.DB, orderID, productID string, items []*model.OrderLineItem) bool {
	product, err := h.productRepo.FindByID(ctx, productID)
	if err != nil {
		h.logger.Error("fetch product for inventory adjustment failed",
			"order_id", orderID, "product_id", productID, "action", "find_product", "error", err)
		return false
	}

	prices := product.Prices
	soldDelta := int64(0)
	changed := false

	for _, item := range items {
		idx := prices.FindByPriceID(item.PriceID)
		if idx < 0 {
			h.logger.Warn("no matching price entry for line item, skipping",
				"order_id", orderID, "product_id", productID, "price_id", item.PriceID)
			continue
		}

		// Untracked inventory (nil) contributes no sold delta.
		if prices[idx].Inventory == nil {
			continue
		}

		remaining := *prices[idx].Inventory - item.Quantity
		prices[idx].Inventory = &remaining
		soldDelta += item.Quantity
		changed = true
	}

	if !changed {
		return false
	}

	succeeded := false

	if err := h.productRepo.UpdatePrices(ctx, tx, productID, prices); err != nil {
		h.logger.Error("persist updated price list failed",
			"order_id", orderID, "product_id", productID, "action", "update_prices", "error", err)
	} else {
		succeeded = true
	}

	if soldDelta > 0 {
		if err := h.productRepo.IncrementAmountSold(ctx, tx, productID, soldDelta); err != nil {
			h.logger.Error("persist amount sold failed",
				"order_id", orderID, "product_id", productID, "action", "increment_amount_sold", "error", err)
		} else {
			succeeded = true
		}
	}

	if succeeded {
		if err := h.productRepo.Publish(ctx, tx, productID); err != nil {
			h.logger.Error("publish product failed",
				"order_id", orderID, "product_id", productID, "action", "publish", "error", err)
		}
	}

	return succeeded
}
