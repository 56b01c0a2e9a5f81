package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/client"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/dto"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/service"
)

type PaymentHandler struct {
	checkoutService service.CheckoutService
	webhookService  service.WebhookService
	clients         *client.Factory
}

func NewPaymentHandler(
	checkoutService service.CheckoutService,
	webhookService service.WebhookService,
	clients *client.Factory,
) *PaymentHandler {
	return &PaymentHandler{
		checkoutService: checkoutService,
		webhookService:  webhookService,
		clients:         clients,
	}
}

func (h *PaymentHandler) CreateCheckoutLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.StoreID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing store_id")
	}

	result, err := h.checkoutService.BuildPaymentLink(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// StripeWebhook verifies the delivery signature before anything else; an
// unverified payload never reaches the reconciler.
func (h *PaymentHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	sigHeader := c.Request().Header.Get("Stripe-Signature")
	if err := h.clients.Client(false).VerifyWebhookSignature(body, sigHeader); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook signature")
	}

	var event client.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}

	if event.Type != client.EventCheckoutCompleted {
		return c.NoContent(http.StatusOK)
	}

	testMode := !event.Livemode
	if _, err := h.webhookService.HandleCheckoutCompleted(ctx, &event, testMode); err != nil {
		return fmt.Errorf("handle webhook: %w", err)
	}

	return c.NoContent(http.StatusOK)
}
