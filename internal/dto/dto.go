package dto

import "github.com/cuongnguyenngoc/marketplace-payments/internal/fees"

type CheckoutItem struct {
	ProductID string `json:"product_id"`
	PriceID   string `json:"price_id"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutRequest struct {
	StoreID     string          `json:"store_id"`
	Items       []*CheckoutItem `json:"items"`
	RedirectURL string          `json:"redirect_url"`
	TestMode    bool            `json:"test_mode"`
}

type CheckoutResponse struct {
	OrderID     string     `json:"order_id,omitempty"`
	PaymentLink string     `json:"payment_link,omitempty"`
	FeeInfo     *fees.Info `json:"fee_info,omitempty"`
}
