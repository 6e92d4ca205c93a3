package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/db"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "goose migrations directory; empty uses the migrations built into the binary")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate work on files only and run without config.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dirOrDefault(*dir), *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		source, err := validate(*dir)
		if err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migrations valid:", source)
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, sqlDB, *dir, *cmd)
	case "version":
		if *version == "" {
			fail("missing -version for version command")
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, *dir, *version)
	default:
		fail("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command complete")
}

func dirOrDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

// validate checks dir, or the source tree when it is present, and falls
// back to the migrations embedded in this binary.
func validate(dir string) (string, error) {
	if dir == "" {
		if _, err := os.Stat(migrate.DefaultDir); err != nil {
			return "embedded", migrate.ValidateEmbedded()
		}
	}
	dir = dirOrDefault(dir)
	return dir, migrate.ValidateDir(dir)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
