package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/client"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/dto"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/fees"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/repository"
)

// maxLinkLineItems is a hard processor limit on payment-link line items;
// extra items are truncated silently.
const maxLinkLineItems = 20

type CheckoutService interface {
	BuildPaymentLink(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
}

// OrderWriteHook is notified after every order write; see InventoryHook.
type OrderWriteHook interface {
	OnOrderWritten(orderID string)
}

type checkoutServiceImpl struct {
	db          *gorm.DB
	clients     *client.Factory
	storeRepo   repository.StoreRepository
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	orderHook   OrderWriteHook
	feeDefaults fees.Config
	logger      *slog.Logger
}

func NewCheckoutService(
	db *gorm.DB,
	clients *client.Factory,
	storeRepo repository.StoreRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	orderHook OrderWriteHook,
	feeDefaults fees.Config,
	logger *slog.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		db:          db,
		clients:     clients,
		storeRepo:   storeRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		orderHook:   orderHook,
		feeDefaults: feeDefaults,
		logger:      logger,
	}
}

func (s *checkoutServiceImpl) BuildPaymentLink(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	store, err := s.storeRepo.Get(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("get store %s: %w", req.StoreID, err)
	}

	lineItems, orderItems, totalMinorUnits, currency, err := s.resolveLineItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	processor := s.clients.Client(req.TestMode)

	// No connected account: plain non-split link, fee logic skipped entirely.
	if store.ConnectedAccountID == nil || *store.ConnectedAccountID == "" {
		link, err := processor.CreatePaymentLink(ctx, &client.PaymentLinkParams{
			LineItems:   capLineItems(lineItems),
			RedirectURL: req.RedirectURL,
			Metadata:    map[string]string{"store_id": store.ID},
		})
		if err != nil {
			s.logger.Error("create plain payment link failed",
				"store_id", store.ID, "action", "create_payment_link", "error", err)
			return &dto.CheckoutResponse{}, nil
		}

		orderID := s.createPendingOrder(ctx, store, link, orderItems, totalMinorUnits, currency, nil)
		return &dto.CheckoutResponse{OrderID: orderID, PaymentLink: link.URL}, nil
	}

	account, err := processor.RetrieveAccount(ctx, *store.ConnectedAccountID)
	if err != nil || !account.ChargesEnabled {
		s.logger.Warn("connected account cannot receive charges",
			"store_id", store.ID,
			"connected_account_id", *store.ConnectedAccountID,
			"action", "retrieve_account",
			"error", err)
		return &dto.CheckoutResponse{}, nil
	}

	resolved := fees.Resolve(store.FeeOverrides, s.feeDefaults)
	feeInfo := fees.BuildInfo(totalMinorUnits, resolved)

	link, err := processor.CreatePaymentLink(ctx, &client.PaymentLinkParams{
		LineItems:            capLineItems(lineItems),
		ApplicationFeeAmount: &feeInfo.ApplicationFee,
		TransferAccountID:    *store.ConnectedAccountID,
		RedirectURL:          req.RedirectURL,
		Metadata:             map[string]string{"store_id": store.ID},
	})
	if err != nil {
		// Fee info still returned for audit even when link creation fails.
		s.logger.Error("create split payment link failed",
			"store_id", store.ID, "action", "create_payment_link", "error", err)
		return &dto.CheckoutResponse{FeeInfo: feeInfo}, nil
	}

	orderID := s.createPendingOrder(ctx, store, link, orderItems, totalMinorUnits, currency, feeInfo)

	return &dto.CheckoutResponse{
		OrderID:     orderID,
		PaymentLink: link.URL,
		FeeInfo:     feeInfo,
	}, nil
}

func (s *checkoutServiceImpl) resolveLineItems(ctx context.Context, items []*dto.CheckoutItem) ([]client.LinkLineItem, []*model.OrderLineItem, int64, string, error) {
	if len(items) == 0 {
		return nil, nil, 0, "", fmt.Errorf("no line items")
	}

	lineItems := make([]client.LinkLineItem, 0, len(items))
	orderItems := make([]*model.OrderLineItem, 0, len(items))
	totalMinorUnits := int64(0)
	currency := ""

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, nil, 0, "", fmt.Errorf("item quantity must be positive")
		}

		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, nil, 0, "", fmt.Errorf("get product %s: %w", item.ProductID, err)
		}

		idx := product.Prices.FindByPriceID(item.PriceID)
		if idx < 0 {
			return nil, nil, 0, "", fmt.Errorf("price %s not found on product %s", item.PriceID, item.ProductID)
		}
		price := product.Prices[idx]

		lineItems = append(lineItems, client.LinkLineItem{
			Name:           product.Name,
			PriceID:        price.PriceID,
			UnitMinorUnits: price.UnitAmount,
			Currency:       price.Currency,
			Quantity:       item.Quantity,
		})
		orderItems = append(orderItems, &model.OrderLineItem{
			ProductID:       product.ID,
			PriceID:         price.PriceID,
			Name:            product.Name,
			Quantity:        item.Quantity,
			UnitMinorUnits:  price.UnitAmount,
			TotalMinorUnits: price.UnitAmount * item.Quantity,
		})
		totalMinorUnits += price.UnitAmount * item.Quantity
		if currency == "" {
			currency = price.Currency
		}
	}

	return lineItems, orderItems, totalMinorUnits, currency, nil
}

// createPendingOrder persists the eager order record for a created link.
// Failure here is logged, not surfaced: the buyer already has a working
// payment link and the webhook will create the order lazily if needed.
func (s *checkoutServiceImpl) createPendingOrder(
	ctx context.Context,
	store *model.Store,
	link *client.PaymentLink,
	orderItems []*model.OrderLineItem,
	totalMinorUnits int64,
	currency string,
	feeInfo *fees.Info,
) string {
	order := &model.Order{
		ID:               uuid.NewString(),
		StoreID:          store.ID,
		PaymentLinkID:    link.ID,
		Status:           model.OrderStatusPending,
		AmountMinorUnits: totalMinorUnits,
		Currency:         currency,
		Extra:            model.OrderExtra{FeeInfo: feeInfo},
	}
	for _, item := range orderItems {
		item.OrderID = order.ID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		if err := s.orderRepo.CreateLineItems(ctx, tx, orderItems); err != nil {
			return fmt.Errorf("store order items: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("persist pending order failed",
			"store_id", store.ID,
			"payment_link_id", link.ID,
			"action", "create_order",
			"error", err)
		return ""
	}

	s.orderHook.OnOrderWritten(order.ID)

	return order.ID
}

func capLineItems(items []client.LinkLineItem) []client.LinkLineItem {
	if len(items) > maxLinkLineItems {
		return items[:maxLinkLineItems]
	}
	return items
}
