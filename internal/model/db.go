package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/fees"
)

const (
	OrderStatusPending  = "pending"
	OrderStatusComplete = "complete"
	OrderStatusPaid     = "paid"
)

type Store struct {
	ID                 string          `gorm:"primaryKey;size:64;not null"`
	Name               string          `gorm:"size:128;not null"`
	ConnectedAccountID *string         `gorm:"size:64;index"` // presence gates split-payment mode
	SupportEmail       string          `gorm:"size:128"`
	FeeOverrides       *fees.Overrides `gorm:"type:json"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type StoreUser struct {
	ID        uint   `gorm:"primaryKey"`
	StoreID   string `gorm:"size:64;index;not null"`
	Email     string `gorm:"size:128;not null"`
	Confirmed bool   `gorm:"not null"`
	CreatedAt time.Time
}

type Product struct {
	ID          string    `gorm:"primaryKey;size:64;not null"`
	StoreID     string    `gorm:"size:64;index;not null"`
	Name        string    `gorm:"size:128;not null"`
	Prices      PriceList `gorm:"type:json"`
	AmountSold  int64     `gorm:"not null"`
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Price is one sellable price entry of a product, keyed by the processor's
// price identifier. Inventory nil means untracked.
type Price struct {
	PriceID    string `json:"price_id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Inventory  *int64 `json:"inventory,omitempty"`
}

type PriceList []Price

func (p PriceList) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PriceList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported price list column type %T", src)
	}
}

// FindByPriceID returns the index of the price entry with the given
// processor price id, or -1.
func (p PriceList) FindByPriceID(priceID string) int {
	for i := range p {
		if p[i].PriceID == priceID {
			return i
		}
	}
	return -1
}

// Order is the canonical transaction record. Created eagerly when a payment
// link is built, or lazily by the webhook when no matching order exists.
// Never deleted.
type Order struct {
	ID               string           `gorm:"primaryKey;size:64;not null"`
	StoreID          string           `gorm:"size:64;index;not null"`
	PaymentLinkID    string           `gorm:"size:64;index"` // processor payment-link id, webhook correlation key
	Status           string           `gorm:"size:32;index;not null"`
	AmountMinorUnits int64            `gorm:"not null"`
	Currency         string           `gorm:"size:8;not null"`
	BuyerEmail       string           `gorm:"size:128"`
	ShippingAddress  *Address         `gorm:"type:json"`
	Extra            OrderExtra       `gorm:"type:json"`
	LineItems        []OrderLineItem  `gorm:"foreignKey:OrderID"`
	PaymentAttempts  []PaymentAttempt `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPaid reports whether the order has reached a paid state. The webhook
// marks orders complete on checkout success; paid is the equivalent state
// used by CMS-driven writes.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusComplete
}

type OrderLineItem struct {
	ID              uint   `gorm:"primaryKey"`
	OrderID         string `gorm:"size:64;index;not null"`
	ProductID       string `gorm:"size:64;index"`
	PriceID         string `gorm:"size:64"` // processor price id
	Name            string `gorm:"size:128"`
	Quantity        int64  `gorm:"not null"`
	UnitMinorUnits  int64  `gorm:"not null"`
	TotalMinorUnits int64  `gorm:"not null"`
	CreatedAt       time.Time
}

// PaymentAttempt rows are append-only; reconciliation never rewrites them.
type PaymentAttempt struct {
	ID         uint   `gorm:"primaryKey"`
	OrderID    string `gorm:"size:64;index;not null"`
	BuyerEmail string `gorm:"size:128"`
	Status     string `gorm:"size:32"`
	Reason     string `gorm:"size:255"`
	SessionID  string `gorm:"size:64"`
	CreatedAt  time.Time
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Name       string `json:"name,omitempty"`
}

func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported address column type %T", src)
	}
}

// ProcessedWebhookEvent records a processor event id that has already been
// handled, so redelivered webhooks are acknowledged without reprocessing.
type ProcessedWebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
