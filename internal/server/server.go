package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/client"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/handler"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/repository"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/service"
)

type Server struct {
	echo           *echo.Echo
	paymentHandler *handler.PaymentHandler
	orderHandler   *handler.OrderHandler
}

func NewServer(
	checkoutService service.CheckoutService,
	webhookService service.WebhookService,
	orderRepo repository.OrderRepository,
	clients *client.Factory,
) *Server {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		paymentHandler: handler.NewPaymentHandler(checkoutService, webhookService, clients),
		orderHandler:   handler.NewOrderHandler(orderRepo),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/checkout/link", s.paymentHandler.CreateCheckoutLink)
	api.GET("/orders/:orderID", s.orderHandler.GetOrder)

	// -------- stripe webhooks --------
	stripe := api.Group("/stripe")
	stripe.POST("/webhook", s.paymentHandler.StripeWebhook)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
