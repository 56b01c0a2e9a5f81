package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/client"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/config"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/fees"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/logging"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/notifier"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/repository"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/server"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/service"
	"github.com/cuongnguyenngoc/marketplace-payments/internal/task"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log)

	if cfg.Stripe.SecretKey == "" {
		logger.Warn("stripe secret key not configured, processor calls will fail as unavailable")
	}

	db := client.InitMysqlClient(cfg.DatabaseURL)
	clients := client.NewFactory(&cfg.Stripe)

	storeRepo := repository.NewStoreRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	executor := task.NewTimerExecutor(logger)
	notify := notifier.NewLogNotifier(logger)

	feeDefaults := fees.DefaultsFromEnv(cfg.Fees)

	inventoryHook := service.NewInventoryHook(db, orderRepo, productRepo, executor, logger)
	feeRetriever := service.NewFeeRetriever(clients, orderRepo, executor, logger)

	checkoutService := service.NewCheckoutService(
		db, clients,
		storeRepo, productRepo, orderRepo,
		inventoryHook,
		feeDefaults,
		logger,
	)
	webhookService := service.NewWebhookService(
		db, clients,
		orderRepo, storeRepo, webhookEventRepo,
		feeRetriever,
		inventoryHook,
		notify,
		cfg.Notify,
		logger,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(checkoutService, webhookService, orderRepo, clients)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("HTTP server shutdown error")
	}

	// Let in-flight deferred tasks (fee retrieval, inventory) finish.
	executor.Wait()
}
