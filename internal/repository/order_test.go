package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
)

func seedOrder(t *testing.T, db *gorm.DB, repo OrderRepository, order *model.Order) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), db, order))
}

func TestOrderFindByPaymentLinkID(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seedOrder(t, db, repo, &model.Order{
		ID:            "ord_1",
		StoreID:       "store_1",
		PaymentLinkID: "plink_1",
		Status:        model.OrderStatusPending,
		Currency:      "usd",
	})

	order, err := repo.FindByPaymentLinkID(ctx, "plink_1")
	require.NoError(t, err)
	assert.Equal(t, "ord_1", order.ID)

	_, err = repo.FindByPaymentLinkID(ctx, "plink_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderMergeExtraIsAdditive(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seedOrder(t, db, repo, &model.Order{
		ID:       "ord_1",
		StoreID:  "store_1",
		Status:   model.OrderStatusComplete,
		Currency: "usd",
		Extra: model.OrderExtra{
			PaymentIntentID: "pi_1",
			Unknown: map[string]json.RawMessage{
				"dashboard_note": json.RawMessage(`"keep me"`),
			},
		},
	})

	require.NoError(t, repo.MergeExtra(ctx, "ord_1", &model.OrderExtra{
		FeesRetrievalStatus: model.FeesRetrievalSuccess,
		ActualFees: &model.ActualFees{
			FeesMinorUnits: 320,
			NetMinorUnits:  9680,
			Source:         model.ActualFeesSourceLedger,
		},
	}))

	order, err := repo.FindByID(ctx, "ord_1")
	require.NoError(t, err)

	assert.Equal(t, "pi_1", order.Extra.PaymentIntentID)
	assert.Contains(t, order.Extra.Unknown, "dashboard_note")
	assert.Equal(t, model.FeesRetrievalSuccess, order.Extra.FeesRetrievalStatus)
	require.NotNil(t, order.Extra.ActualFees)
	assert.Equal(t, int64(320), order.Extra.ActualFees.FeesMinorUnits)
}

func TestOrderMergeExtraMissingOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)

	err := repo.MergeExtra(context.Background(), "ord_missing", &model.OrderExtra{
		FeesRetrievalStatus: model.FeesRetrievalFailed,
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderUpdateStatusAndAttempts(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seedOrder(t, db, repo, &model.Order{
		ID:       "ord_1",
		StoreID:  "store_1",
		Status:   model.OrderStatusPending,
		Currency: "usd",
	})

	require.NoError(t, repo.UpdateStatus(ctx, db, "ord_1", model.OrderStatusComplete))
	require.NoError(t, repo.AppendPaymentAttempt(ctx, db, &model.PaymentAttempt{
		OrderID:    "ord_1",
		BuyerEmail: "buyer@example.com",
		Status:     "paid",
		SessionID:  "cs_1",
	}))
	require.NoError(t, repo.AppendPaymentAttempt(ctx, db, &model.PaymentAttempt{
		OrderID:   "ord_1",
		Status:    "paid",
		SessionID: "cs_2",
	}))

	order, err := repo.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusComplete, order.Status)
	assert.Len(t, order.PaymentAttempts, 2)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, db, "ord_missing", model.OrderStatusComplete), gorm.ErrRecordNotFound)
}

func TestOrderLockForUpdateLoadsLineItems(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seedOrder(t, db, repo, &model.Order{
		ID:       "ord_1",
		StoreID:  "store_1",
		Status:   model.OrderStatusComplete,
		Currency: "usd",
	})
	require.NoError(t, repo.CreateLineItems(ctx, db, []*model.OrderLineItem{
		{OrderID: "ord_1", ProductID: "prod_1", PriceID: "price_1", Quantity: 2},
	}))

	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := repo.LockForUpdate(ctx, tx, "ord_1")
		if err != nil {
			return err
		}
		assert.Len(t, order.LineItems, 1)
		return nil
	})
	require.NoError(t, err)
}
