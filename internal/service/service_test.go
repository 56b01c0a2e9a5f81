package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/client"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/model"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/notifier"
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

// fakePaymentClient is a scripted PaymentClient that records what it was
// asked for.
type fakePaymentClient struct {
	mu sync.Mutex

	account    *client.Account
	accountErr error

	link    *client.PaymentLink
	linkErr error

	settlementEntries []*client.SettlementEntry
	settlementErr     error

	charges    []*client.Charge
	chargesErr error

	linkParams     []*client.PaymentLinkParams
	settlementReqs []string
	chargeReqs     []string
}

func (f *fakePaymentClient) RetrieveAccount(ctx context.Context, accountID string) (*client.Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.account, nil
}

func (f *fakePaymentClient) CreatePaymentLink(ctx context.Context, params *client.PaymentLinkParams) (*client.PaymentLink, error) {
	f.mu.Lock()
	f.linkParams = append(f.linkParams, params)
	f.mu.Unlock()

	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return f.link, nil
}

func (f *fakePaymentClient) ListSettlementEntries(ctx context.Context, sourceID string, limit int) ([]*client.SettlementEntry, error) {
	f.mu.Lock()
	f.settlementReqs = append(f.settlementReqs, sourceID)
	f.mu.Unlock()

	if f.settlementErr != nil {
		return nil, f.settlementErr
	}
	return f.settlementEntries, nil
}

func (f *fakePaymentClient) ListCharges(ctx context.Context, paymentIntentID string, limit int) ([]*client.Charge, error) {
	f.mu.Lock()
	f.chargeReqs = append(f.chargeReqs, paymentIntentID)
	f.mu.Unlock()

	if f.chargesErr != nil {
		return nil, f.chargesErr
	}
	return f.charges, nil
}

func (f *fakePaymentClient) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	return nil
}

func newFakeFactory(fake *fakePaymentClient) *client.Factory {
	return client.NewFactoryWithClients(fake, fake)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []*notifier.Message
	err      error
}

func (f *fakeNotifier) Send(ctx context.Context, msg *notifier.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

type fakeOrderHook struct {
	mu     sync.Mutex
	orders []string
}

func (f *fakeOrderHook) OnOrderWritten(orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orderID)
}

type scheduledRetrieval struct {
	orderID         string
	paymentIntentID string
	testMode        bool
	delay           time.Duration
}

type fakeFeeRetriever struct {
	mu        sync.Mutex
	scheduled []scheduledRetrieval
}

func (f *fakeFeeRetriever) RetrieveAndStoreActualFees(ctx context.Context, orderID, paymentIntentID string, testMode bool) {
}

func (f *fakeFeeRetriever) ScheduleDeferred(orderID, paymentIntentID string, testMode bool, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, scheduledRetrieval{orderID, paymentIntentID, testMode, delay})
}
