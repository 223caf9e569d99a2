package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lekhanhduc/qrpay/internal/domain/port/persistence"
	"github.com/lekhanhduc/qrpay/internal/domain/usecase/payment"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/handler"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/routes"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/gateway/bankfeed"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/logger"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/metrics"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/notifier"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/storage/boltstore"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/storage/postgres"
	timeProvider "github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/time"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/config"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create logger
	appLogger := logger.NewZapLogger(cfg.Environment == config.Production)
	defer func() { _ = appLogger.Flush() }()

	// Initialize time provider
	tp := timeProvider.NewRealTimeProvider()

	// Open storage
	var (
		transactionStore persistence.TransactionStore
		balanceStore     persistence.BalanceStore
		inventoryStore   persistence.InventoryStore
		closeStorage     func() error
	)

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.Connect(postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN(),
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
			LogLevel:        cfg.Logger.Level,
		})
		if err != nil {
			appLogger.Error("Failed to connect to database", map[string]any{
				"error": err.Error(),
			})
			os.Exit(1)
		}
		transactionStore = postgres.NewTransactionStore(db, tp, appLogger)
		balanceStore = postgres.NewBalanceStore(db, tp, appLogger)
		inventoryStore = postgres.NewInventoryStore(db, tp, appLogger)
		closeStorage = func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
	default:
		db, err := boltstore.Open(cfg.Storage.Path)
		if err != nil {
			appLogger.Error("Failed to open storage file", map[string]any{
				"path":  cfg.Storage.Path,
				"error": err.Error(),
			})
			os.Exit(1)
		}
		transactionStore = boltstore.NewTransactionStore(db, tp, appLogger)
		balanceStore = boltstore.NewBalanceStore(db, tp, appLogger)
		inventoryStore = boltstore.NewInventoryStore(db, tp, appLogger)
		closeStorage = db.Close
	}
	defer func() {
		if err := closeStorage(); err != nil {
			appLogger.Error("Failed to close storage", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	// Outbound adapters
	feedClient := bankfeed.NewClient(bankfeed.Config{
		BaseURL:     cfg.Bank.FeedURL,
		BankAccount: cfg.Bank.Account,
		Timeout:     cfg.Bank.FetchTimeout,
	}, tp, appLogger)

	botNotifier := notifier.NewHTTPNotifier(notifier.Config{
		BaseURL: cfg.Notifier.BaseURL,
		Timeout: cfg.Notifier.Timeout,
	}, tp)

	// Initialize use cases
	paymentService := payment.NewService(
		transactionStore,
		balanceStore,
		inventoryStore,
		tp,
		appLogger,
		payment.QRConfig{
			BankCode:    cfg.Bank.Code,
			BankAccount: cfg.Bank.Account,
			Template:    cfg.Bank.QRTemplate,
		},
	)

	fulfiller := payment.NewFulfiller(
		balanceStore,
		inventoryStore,
		botNotifier,
		appLogger,
		cfg.Notifier.AdminChatID,
	)

	reconciler := payment.NewReconciler(
		transactionStore,
		feedClient,
		fulfiller,
		botNotifier,
		tp,
		appLogger,
		recorder,
		cfg.Reconciler.Interval,
	)

	// Start the settlement loop
	reconcileCtx, stopReconcile := context.WithCancel(context.Background())
	reconciler.Start(reconcileCtx)

	// Initialize API handlers
	paymentHandler := handler.NewPaymentHandler(paymentService, appLogger)
	productHandler := handler.NewProductHandler(inventoryStore, appLogger)

	// Initialize Gin router
	router := gin.New()
	routes.SetupMiddlewares(router, appLogger, registry)
	routes.SetupRoutes(router, paymentHandler, productHandler, registry)

	// Create HTTP server with configurable timeout values
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		appLogger.Info("Starting server", map[string]any{
			"addr": server.Addr,
			"env":  cfg.Environment,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server", map[string]any{
				"error": err.Error(),
			})
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...", nil)

	// Stop the settlement loop first so no cycle runs against a closing store
	stopReconcile()
	reconciler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", map[string]any{
			"error": err.Error(),
		})
	}

	appLogger.Info("Server exited gracefully", nil)
}
