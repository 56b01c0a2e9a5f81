package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/client"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/repository"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/task"
)

// DefaultDeferredDelay is how long after checkout completion the settlement
// ledger is given before the deferred fee lookup runs.
const DefaultDeferredDelay = 2 * time.Second

const retrievalTimeout = 30 * time.Second

// FeeRetriever fetches actual settled fees from the processor's ledger and
// persists them onto the order. The ledger lags the charge, so retrieval is
// usually deferred; one deferred attempt is made and a failure after that is
// terminal and recorded on the order.
type FeeRetriever interface {
	RetrieveAndStoreActualFees(ctx context.Context, orderID, paymentIntentID string, testMode bool)
	ScheduleDeferred(orderID, paymentIntentID string, testMode bool, delay time.Duration)
}

type feeRetrieverImpl struct {
	clients   *client.Factory
	orderRepo repository.OrderRepository
	executor  task.Executor
	logger    *slog.Logger
}

func NewFeeRetriever(
	clients *client.Factory,
	orderRepo repository.OrderRepository,
	executor task.Executor,
	logger *slog.Logger,
) FeeRetriever {
	return &feeRetrieverImpl{
		clients:   clients,
		orderRepo: orderRepo,
		executor:  executor,
		logger:    logger,
	}
}

// ScheduleDeferred arranges a single later retrieval attempt. One-shot, not
// a recurring poll, not cancelable, fire-and-forget relative to the caller.
func (r *feeRetrieverImpl) ScheduleDeferred(orderID, paymentIntentID string, testMode bool, delay time.Duration) {
	if delay <= 0 {
		delay = DefaultDeferredDelay
	}

	r.executor.Schedule(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), retrievalTimeout)
		defer cancel()
		r.RetrieveAndStoreActualFees(ctx, orderID, paymentIntentID, testMode)
	})
}

// RetrieveAndStoreActualFees queries the settlement ledger for the payment
// intent and merges the result into the order's extra bag. All writes are
// additive merges; errors are recorded on the order, never returned.
func (r *feeRetrieverImpl) RetrieveAndStoreActualFees(ctx context.Context, orderID, paymentIntentID string, testMode bool) {
	processor := r.clients.Client(testMode)

	entries, err := processor.ListSettlementEntries(ctx, paymentIntentID, 1)
	if err == nil && len(entries) > 0 {
		entry := entries[0]
		r.storeResult(ctx, orderID, &model.ActualFees{
			FeesMinorUnits:   entry.Fee,
			NetMinorUnits:    entry.Net,
			AmountMinorUnits: entry.Amount,
			RetrievedAt:      time.Now(),
			Source:           model.ActualFeesSourceLedger,
		})
		return
	}
	if err != nil {
		r.logger.Warn("settlement ledger lookup failed, trying charge fallback",
			"order_id", orderID,
			"payment_intent_id", paymentIntentID,
			"action", "list_settlement_entries",
			"error", err)
	}

	// Ledger entry not there yet: fall back to the charge record for at
	// least the net amount, fees unknown.
	charges, chargeErr := processor.ListCharges(ctx, paymentIntentID, 1)
	if chargeErr == nil && len(charges) > 0 {
		charge := charges[0]
		r.storeResult(ctx, orderID, &model.ActualFees{
			FeesMinorUnits:   0,
			NetMinorUnits:    charge.AmountCaptured,
			AmountMinorUnits: charge.Amount,
			RetrievedAt:      time.Now(),
			Source:           model.ActualFeesSourceChargeLookup,
		})
		return
	}

	failure := "settlement ledger entry not found"
	if chargeErr != nil {
		failure = chargeErr.Error()
	} else if err != nil {
		failure = err.Error()
	}
	r.storeFailure(ctx, orderID, paymentIntentID, failure)
}

func (r *feeRetrieverImpl) storeResult(ctx context.Context, orderID string, actual *model.ActualFees) {
	now := time.Now()
	err := r.orderRepo.MergeExtra(ctx, orderID, &model.OrderExtra{
		ActualFees:          actual,
		FeesRetrievalStatus: model.FeesRetrievalSuccess,
		FeesRetrievalAt:     &now,
	})
	if err != nil {
		r.logger.Error("persist actual fees failed",
			"order_id", orderID, "action", "merge_extra", "error", err)
		return
	}

	r.logger.Info("actual fees stored",
		"order_id", orderID,
		"source", actual.Source,
		"fees_minor_units", actual.FeesMinorUnits,
		"net_minor_units", actual.NetMinorUnits)
}

// storeFailure writes the terminal failure marker. No further automatic
// retry happens beyond the single deferred attempt; the marker is for
// operational follow-up.
func (r *feeRetrieverImpl) storeFailure(ctx context.Context, orderID, paymentIntentID, reason string) {
	now := time.Now()
	err := r.orderRepo.MergeExtra(ctx, orderID, &model.OrderExtra{
		FeesRetrievalStatus: model.FeesRetrievalFailed,
		FeesRetrievalError:  reason,
		FeesRetrievalAt:     &now,
	})
	if err != nil {
		r.logger.Error("persist fee retrieval failure marker failed",
			"order_id", orderID, "action", "merge_extra", "error", err)
		return
	}

	r.logger.Warn("fee retrieval failed terminally",
		"order_id", orderID,
		"payment_intent_id", paymentIntentID,
		"reason", reason)
}
