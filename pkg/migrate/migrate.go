package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where `migrate create` and `migrate validate` look on disk.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// source points goose at the embedded files when dir is empty and at the
// filesystem otherwise, returning the directory to pass to goose.
func source(dir string) (string, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return "", fmt.Errorf("goose dialect: %w", err)
	}
	if dir != "" {
		goose.SetBaseFS(nil)
		return dir, nil
	}
	goose.SetBaseFS(embeddedMigrations)
	return embeddedDir, nil
}

// Run executes a goose command such as up, down, status or version.
func Run(ctx context.Context, db *sql.DB, dir, command string, args ...string) error {
	if db == nil {
		return errors.New("db is required")
	}
	dir, err := source(dir)
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("version %q must be a YYYYMMDDHHMMSS number", version)
	}
	dir, err = source(dir)
	if err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("current db version: %w", err)
	}

	step, move := "up-to", goose.UpToContext
	switch {
	case current == target:
		return nil
	case current > target:
		step, move = "down-to", goose.DownToContext
	}
	if err := move(ctx, db, dir, target); err != nil {
		return fmt.Errorf("goose %s %d: %w", step, target, err)
	}
	return nil
}
