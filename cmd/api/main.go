package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-payments/api/controllers"
	"github.com/angelmondragon/storefront-payments/api/routes"
	"github.com/angelmondragon/storefront-payments/internal/inventory"
	"github.com/angelmondragon/storefront-payments/internal/orders"
	"github.com/angelmondragon/storefront-payments/internal/payments"
	"github.com/angelmondragon/storefront-payments/internal/refunds"
	razorpaywebhook "github.com/angelmondragon/storefront-payments/internal/webhooks/razorpay"
	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/db"
	"github.com/angelmondragon/storefront-payments/pkg/instance"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/metrics"
	"github.com/angelmondragon/storefront-payments/pkg/migrate"
	"github.com/angelmondragon/storefront-payments/pkg/outbox"
	"github.com/angelmondragon/storefront-payments/pkg/razorpay"
	"github.com/angelmondragon/storefront-payments/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"razorpay_mode": gateway.Mode(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, gateway *razorpay.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	ledger, err := inventory.NewLedger(inventory.NewRepository(conn), logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		TransactionRunner: dbClient,
		OrdersRepo:        ordersRepo,
		Ledger:            ledger,
		Outbox:            emitter,
		Metrics:           paymentMetrics,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	refundsService, err := refunds.NewService(refunds.ServiceParams{
		TransactionRunner: dbClient,
		Repo:              refunds.NewRepository(conn),
		OrdersRepo:        ordersRepo,
		Gateway:           gateway,
		Outbox:            emitter,
		Metrics:           paymentMetrics,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Payments: paymentsService,
		Refunds:  refundsService,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	guard, err := razorpaywebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.EventIdempotencyTTL, razorpaywebhook.Scope)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		ReadinessChecks: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		ResponseStore:  redisClient,
		WebhookService: webhookService,
		WebhookGuard:   guard,
		RefundService:  refundsService,
		MetricsHandler: promhttp.Handler(),
	}, nil
}
