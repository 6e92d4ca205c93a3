package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const defaultOutboxRetention = 30 * 24 * time.Hour

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         db.TxRunner
	Repository outboxPruner
	// Retention is how long published events are kept.
	Retention time.Duration
	// MaxAttempts marks an unpublished row as exhausted; such rows already
	// have a dead-letter copy and are pruned with the published ones.
	MaxAttempts int
}

// NewOutboxRetentionJob prunes payment events past the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	case params.MaxAttempts <= 0:
		return nil, fmt.Errorf("max attempts must be positive")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   retention,
		maxAttempts: params.MaxAttempts,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          db.TxRunner
	repo        outboxPruner
	retention   time.Duration
	maxAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.maxAttempts)
		deleted = n
		return err
	}); err != nil {
		return fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox.pruned")
	return nil
}
