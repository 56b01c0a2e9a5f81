package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/config"
)

// PaymentClient is the narrow processor surface this system depends on.
// Every call may fail with a transport or auth error; callers treat any
// failure as "feature unavailable" rather than crashing.
type PaymentClient interface {
	RetrieveAccount(ctx context.Context, accountID string) (*Account, error)
	CreatePaymentLink(ctx context.Context, params *PaymentLinkParams) (*PaymentLink, error)
	ListSettlementEntries(ctx context.Context, sourceID string, limit int) ([]*SettlementEntry, error)
	ListCharges(ctx context.Context, paymentIntentID string, limit int) ([]*Charge, error)
	VerifyWebhookSignature(payload []byte, sigHeader string) error
}

type Account struct {
	ID             string `json:"id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	Country        string `json:"country"`
}

type LinkLineItem struct {
	Name           string
	PriceID        string
	UnitMinorUnits int64
	Currency       string
	Quantity       int64
}

type PaymentLinkParams struct {
	LineItems            []LinkLineItem
	ApplicationFeeAmount *int64 // nil for a plain non-split link
	TransferAccountID    string // connected account receiving the transfer
	RedirectURL          string
	Metadata             map[string]string
}

type PaymentLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SettlementEntry is a processor ledger record carrying the actual (not
// estimated) processing fee and net, created asynchronously after a charge
// settles.
type SettlementEntry struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Fee      int64  `json:"fee"`
	Net      int64  `json:"net"`
	Currency string `json:"currency"`
}

type Charge struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
	Amount          int64  `json:"amount"`
	AmountCaptured  int64  `json:"amount_captured"`
	Currency        string `json:"currency"`
}

type stripeClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	secretKey     string
	webhookSecret string
}

// Factory hands out a client keyed by test/live mode, so components receive
// an explicit client instead of a module-level singleton.
type Factory struct {
	live PaymentClient
	test PaymentClient
}

func NewFactory(cfg *config.Stripe) *Factory {
	return &Factory{
		live: newStripeClient(cfg.BaseApiURL, cfg.SecretKey, cfg.WebhookSecret),
		test: newStripeClient(cfg.BaseApiURL, cfg.TestSecretKey, cfg.WebhookSecret),
	}
}

// NewFactoryWithClients wires explicit clients; used by tests to inject
// doubles.
func NewFactoryWithClients(live, test PaymentClient) *Factory {
	return &Factory{live: live, test: test}
}

func (f *Factory) Client(testMode bool) PaymentClient {
	if testMode {
		return f.test
	}
	return f.live
}

func newStripeClient(baseApiURL, secretKey, webhookSecret string) PaymentClient {
	return &stripeClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:    baseApiURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
	}
}

func (c *stripeClientImpl) RetrieveAccount(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	err := c.doRequest(ctx, http.MethodGet, "/v1/accounts/"+accountID, nil, &account)
	if err != nil {
		return nil, fmt.Errorf("retrieve account %s: %w", accountID, err)
	}
	return &account, nil
}

func (c *stripeClientImpl) CreatePaymentLink(ctx context.Context, params *PaymentLinkParams) (*PaymentLink, error) {
	form := url.Values{}
	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		if item.PriceID != "" {
			form.Set(prefix+"[price]", item.PriceID)
		} else {
			form.Set(prefix+"[price_data][currency]", strings.ToLower(item.Currency))
			form.Set(prefix+"[price_data][product_data][name]", item.Name)
			form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitMinorUnits, 10))
		}
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}
	if params.ApplicationFeeAmount != nil {
		form.Set("application_fee_amount", strconv.FormatInt(*params.ApplicationFeeAmount, 10))
	}
	if params.TransferAccountID != "" {
		form.Set("transfer_data[destination]", params.TransferAccountID)
	}
	if params.RedirectURL != "" {
		form.Set("after_completion[type]", "redirect")
		form.Set("after_completion[redirect][url]", params.RedirectURL)
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var link PaymentLink
	if err := c.doRequest(ctx, http.MethodPost, "/v1/payment_links", form, &link); err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}
	return &link, nil
}

func (c *stripeClientImpl) ListSettlementEntries(ctx context.Context, sourceID string, limit int) ([]*SettlementEntry, error) {
	query := url.Values{}
	query.Set("source", sourceID)
	query.Set("limit", strconv.Itoa(limit))

	var list struct {
		Data []*SettlementEntry `json:"data"`
	}
	err := c.doRequest(ctx, http.MethodGet, "/v1/balance_transactions?"+query.Encode(), nil, &list)
	if err != nil {
		return nil, fmt.Errorf("list settlement entries for %s: %w", sourceID, err)
	}
	return list.Data, nil
}

func (c *stripeClientImpl) ListCharges(ctx context.Context, paymentIntentID string, limit int) ([]*Charge, error) {
	query := url.Values{}
	query.Set("payment_intent", paymentIntentID)
	query.Set("limit", strconv.Itoa(limit))

	var list struct {
		Data []*Charge `json:"data"`
	}
	err := c.doRequest(ctx, http.MethodGet, "/v1/charges?"+query.Encode(), nil, &list)
	if err != nil {
		return nil, fmt.Errorf("list charges for %s: %w", paymentIntentID, err)
	}
	return list.Data, nil
}

func (c *stripeClientImpl) doRequest(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stripe error %d: %s", resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode stripe response: %w", err)
		}
	}

	return nil
}
