package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/db"
	"github.com/angelmondragon/storefront-payments/pkg/instance"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/migrate"
	"github.com/angelmondragon/storefront-payments/pkg/outbox"
	"github.com/angelmondragon/storefront-payments/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	bootLog := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"instance":    instance.GetID(),
		"topic":       cfg.PubSub.PaymentTopic,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down")
}

// run relays payment events from the outbox table to Pub/Sub until ctx ends.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeWith(ctx, logg, "pubsub", pubsubClient.Close)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
	})
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}

	logg.Info(ctx, "outbox publisher starting")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closeWith(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", what), "close failed", err)
	}
}
