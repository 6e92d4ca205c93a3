package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-payments/internal/cron"
	"github.com/angelmondragon/storefront-payments/internal/inventory"
	"github.com/angelmondragon/storefront-payments/internal/orders"
	"github.com/angelmondragon/storefront-payments/internal/payments"
	"github.com/angelmondragon/storefront-payments/internal/refunds"
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

func main() {
	once := flag.Bool("once", false, "run a single reconcile cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	registry, err := buildRegistry(cfg, logg, dbClient, gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), cfg.Reconcile.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"jobs":     registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running single reconcile cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "reconcile cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway *razorpay.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	ledger, err := inventory.NewLedger(inventory.NewRepository(conn), logg)
	if err != nil {
		return nil, err
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
		return nil, err
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
		return nil, err
	}

	inventoryJob, err := cron.NewInventoryReconcileJob(cron.InventoryReconcileJobParams{
		Logger:    logg,
		Orders:    ordersRepo,
		Payments:  paymentsService,
		Grace:     cfg.Reconcile.InventoryGrace,
		BatchSize: cfg.Reconcile.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	refundJob, err := cron.NewRefundReconcileJob(cron.RefundReconcileJobParams{
		Logger:     logg,
		Refunds:    refundsService,
		StaleAfter: cfg.Reconcile.RefundStaleAfter,
		BatchSize:  cfg.Reconcile.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(inventoryJob, refundJob, retentionJob)
}
