package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/db"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at startup, but only in dev
// and only when STOREFRONT_AUTO_MIGRATE is set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	ctx = logg.WithField(ctx, "migrations", "embedded")
	logg.Info(ctx, "migrate.autorun_start")
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun_done")
	return nil
}
