package client

import "encoding/json"

const EventCheckoutCompleted = "checkout.session.completed"

// WebhookEvent is the envelope of a processor webhook delivery.
type WebhookEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the payload of a checkout.session.completed event.
type CheckoutSession struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
	PaymentLinkID   string `json:"payment_link"`
	AmountTotal     int64  `json:"amount_total"`
	Currency        string `json:"currency"`
	PaymentStatus   string `json:"payment_status"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	ShippingDetails struct {
		Name    string `json:"name"`
		Address struct {
			Line1      string `json:"line1"`
			Line2      string `json:"line2"`
			City       string `json:"city"`
			State      string `json:"state"`
			PostalCode string `json:"postal_code"`
			Country    string `json:"country"`
		} `json:"address"`
	} `json:"shipping_details"`
	LineItems []SessionLineItem `json:"line_items"`
	Metadata  map[string]string `json:"metadata"`
}

type SessionLineItem struct {
	Name       string `json:"name"`
	ProductID  string `json:"product_id"`
	PriceID    string `json:"price_id"`
	Quantity   int64  `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
	Total      int64  `json:"amount_total"`
}

// ParseCheckoutSession decodes the session object out of a verified event.
func ParseCheckoutSession(event *WebhookEvent) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
