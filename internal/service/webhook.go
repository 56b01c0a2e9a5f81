package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/client"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/config"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/fees"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/notifier"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/repository"
)

type WebhookService interface {
	HandleCheckoutCompleted(ctx context.Context, event *client.WebhookEvent, testMode bool) (*model.Order, error)
}

type webhookServiceImpl struct {
	db               *gorm.DB
	clients          *client.Factory
	orderRepo        repository.OrderRepository
	storeRepo        repository.StoreRepository
	webhookEventRepo repository.WebhookEventRepository
	feeRetriever     FeeRetriever
	orderHook        OrderWriteHook
	notifier         notifier.Notifier
	notifyCfg        config.Notify
	logger           *slog.Logger
}

func NewWebhookService(
	db *gorm.DB,
	clients *client.Factory,
	orderRepo repository.OrderRepository,
	storeRepo repository.StoreRepository,
	webhookEventRepo repository.WebhookEventRepository,
	feeRetriever FeeRetriever,
	orderHook OrderWriteHook,
	n notifier.Notifier,
	notifyCfg config.Notify,
	logger *slog.Logger,
) WebhookService {
	return &webhookServiceImpl{
		db:               db,
		clients:          clients,
		orderRepo:        orderRepo,
		storeRepo:        storeRepo,
		webhookEventRepo: webhookEventRepo,
		feeRetriever:     feeRetriever,
		orderHook:        orderHook,
		notifier:         n,
		notifyCfg:        notifyCfg,
		logger:           logger,
	}
}

// HandleCheckoutCompleted reconciles a verified checkout-completed event
// into the canonical order record. The caller must have verified the event
// signature already; an unverified event must never reach this method.
func (s *webhookServiceImpl) HandleCheckoutCompleted(ctx context.Context, event *client.WebhookEvent, testMode bool) (*model.Order, error) {
	processed, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("check webhook event %s: %w", event.ID, err)
	}
	if processed {
		s.logger.Info("webhook event already processed", "event_id", event.ID)
		return nil, nil
	}

	session, err := client.ParseCheckoutSession(event)
	if err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	// Best-effort immediate fee lookup. Ledger entries often are not yet
	// available this soon after checkout; absence is normal, not an error.
	actualFees := s.tryImmediateFeeLookup(ctx, session.PaymentIntentID, testMode)

	order, err := s.reconcileOrder(ctx, session, actualFees)
	if err != nil {
		return nil, err
	}

	if actualFees == nil && session.PaymentIntentID != "" {
		s.feeRetriever.ScheduleDeferred(order.ID, session.PaymentIntentID, testMode, DefaultDeferredDelay)
	}

	s.sendNotifications(ctx, order)

	if err := s.webhookEventRepo.MarkProcessed(ctx, event.ID, event.Type); err != nil {
		s.logger.Error("mark webhook event processed failed",
			"event_id", event.ID, "order_id", order.ID, "error", err)
	}

	s.orderHook.OnOrderWritten(order.ID)

	return order, nil
}

func (s *webhookServiceImpl) tryImmediateFeeLookup(ctx context.Context, paymentIntentID string, testMode bool) *model.ActualFees {
	if paymentIntentID == "" {
		return nil
	}

	entries, err := s.clients.Client(testMode).ListSettlementEntries(ctx, paymentIntentID, 1)
	if err != nil || len(entries) == 0 {
		return nil
	}

	entry := entries[0]
	return &model.ActualFees{
		FeesMinorUnits:   entry.Fee,
		NetMinorUnits:    entry.Net,
		AmountMinorUnits: entry.Amount,
		RetrievedAt:      time.Now(),
		Source:           model.ActualFeesSourceLedger,
	}
}

// reconcileOrder locates the order by payment-link id and updates it, or
// constructs a new one from the session payload when no match exists.
func (s *webhookServiceImpl) reconcileOrder(ctx context.Context, session *client.CheckoutSession, actualFees *model.ActualFees) (*model.Order, error) {
	patch := &model.OrderExtra{
		PaymentIntentID: session.PaymentIntentID,
		SessionID:       session.ID,
	}
	if actualFees != nil {
		patch.ActualFees = actualFees
		patch.FeesRetrievalStatus = model.FeesRetrievalSuccess
	}

	shipping := sessionAddress(session)

	existing, err := s.orderRepo.FindByPaymentLinkID(ctx, session.PaymentLinkID)
	if err == nil {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.orderRepo.AppendPaymentAttempt(ctx, tx, &model.PaymentAttempt{
				OrderID:    existing.ID,
				BuyerEmail: session.CustomerDetails.Email,
				Status:     session.PaymentStatus,
				SessionID:  session.ID,
			}); err != nil {
				return fmt.Errorf("append payment attempt: %w", err)
			}
			if err := s.orderRepo.UpdateStatus(ctx, tx, existing.ID, model.OrderStatusComplete); err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			if err := s.orderRepo.UpdateShipping(ctx, tx, existing.ID, shipping, session.CustomerDetails.Email); err != nil {
				return fmt.Errorf("update shipping: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("update order %s: %w", existing.ID, err)
		}

		if err := s.orderRepo.MergeExtra(ctx, existing.ID, patch); err != nil {
			return nil, fmt.Errorf("merge extra on order %s: %w", existing.ID, err)
		}

		return s.orderRepo.FindByID(ctx, existing.ID)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("find order by payment link %s: %w", session.PaymentLinkID, err)
	}

	// Lazy creation: the webhook is the first time we hear of this checkout.
	order := &model.Order{
		ID:               uuid.NewString(),
		StoreID:          session.Metadata["store_id"],
		PaymentLinkID:    session.PaymentLinkID,
		Status:           model.OrderStatusComplete,
		AmountMinorUnits: session.AmountTotal,
		Currency:         session.Currency,
		BuyerEmail:       session.CustomerDetails.Email,
		ShippingAddress:  shipping,
		Extra:            model.OrderExtra{},
	}
	order.Extra.Merge(patch)

	orderItems := make([]*model.OrderLineItem, len(session.LineItems))
	for i, li := range session.LineItems {
		orderItems[i] = &model.OrderLineItem{
			OrderID:         order.ID,
			ProductID:       li.ProductID,
			PriceID:         li.PriceID,
			Name:            li.Name,
			Quantity:        li.Quantity,
			UnitMinorUnits:  li.UnitAmount,
			TotalMinorUnits: li.Total,
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		if len(orderItems) > 0 {
			if err := s.orderRepo.CreateLineItems(ctx, tx, orderItems); err != nil {
				return fmt.Errorf("store order items: %w", err)
			}
		}
		return s.orderRepo.AppendPaymentAttempt(ctx, tx, &model.PaymentAttempt{
			OrderID:    order.ID,
			BuyerEmail: session.CustomerDetails.Email,
			Status:     session.PaymentStatus,
			SessionID:  session.ID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create order from webhook: %w", err)
	}

	return s.orderRepo.FindByID(ctx, order.ID)
}

// sendNotifications delivers purchase notifications to the store and an
// order confirmation to the buyer. Failures are logged, never propagated:
// the webhook must acknowledge once the order write succeeded.
func (s *webhookServiceImpl) sendNotifications(ctx context.Context, order *model.Order) {
	if order.StoreID != "" {
		emails, err := s.storeRepo.ConfirmedEmails(ctx, order.StoreID)
		if err != nil {
			s.logger.Error("load store notification emails failed",
				"order_id", order.ID, "store_id", order.StoreID, "error", err)
		}
		for _, to := range emails {
			msg := &notifier.Message{
				To:      to,
				From:    s.notifyCfg.FromEmail,
				Subject: fmt.Sprintf("New order %s", order.ID),
				Text:    fmt.Sprintf("Order %s for %s %s has been paid.", order.ID, displayTotal(order), order.Currency),
			}
			if err := s.notifier.Send(ctx, msg); err != nil {
				s.logger.Error("store purchase notification failed",
					"order_id", order.ID, "to", to, "error", err)
			}
		}
	}

	if order.BuyerEmail != "" {
		msg := &notifier.Message{
			To:      order.BuyerEmail,
			From:    s.notifyCfg.FromEmail,
			ReplyTo: s.notifyCfg.SupportEmail,
			Subject: fmt.Sprintf("Your order confirmation (%s)", order.ID),
			Text:    fmt.Sprintf("Thanks for your purchase. Order %s, total %s %s.", order.ID, displayTotal(order), order.Currency),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Error("buyer confirmation notification failed",
				"order_id", order.ID, "to", order.BuyerEmail, "error", err)
		}
	}
}

func sessionAddress(session *client.CheckoutSession) *model.Address {
	a := session.ShippingDetails.Address
	if a.Line1 == "" && a.City == "" && a.Country == "" {
		return nil
	}
	return &model.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Name:       session.ShippingDetails.Name,
	}
}

func displayTotal(order *model.Order) string {
	return fees.DisplayAmount(order.AmountMinorUnits)
}
