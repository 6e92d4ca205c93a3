package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-payments/internal/refunds"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const defaultRefundStaleAfter = 30 * time.Minute

type staleRefundReconciler interface {
	ReconcileStale(ctx context.Context, staleBefore time.Time, limit int) (refunds.ReconcileSummary, error)
}

type RefundReconcileJobParams struct {
	Logger     *logger.Logger
	Refunds    staleRefundReconciler
	StaleAfter time.Duration
	BatchSize  int
}

// NewRefundReconcileJob polls the gateway for refunds whose webhook never
// arrived.
func NewRefundReconcileJob(params RefundReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refunds service required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultRefundStaleAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &refundReconcileJob{
		logg:       params.Logger,
		refunds:    params.Refunds,
		staleAfter: staleAfter,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type refundReconcileJob struct {
	logg       *logger.Logger
	refunds    staleRefundReconciler
	staleAfter time.Duration
	batch      int
	now        func() time.Time
}

func (j *refundReconcileJob) Name() string { return "refund-reconcile" }

func (j *refundReconcileJob) Run(ctx context.Context) error {
	staleBefore := j.now().UTC().Add(-j.staleAfter)
	summary, err := j.refunds.ReconcileStale(ctx, staleBefore, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale_before":  staleBefore,
		"checked":       summary.Checked,
		"updated":       summary.Updated,
		"stuck_pending": summary.StuckPending,
	})
	if summary.StuckPending > 0 {
		j.logg.Warn(logCtx, "pending refunds without a gateway id need manual review")
	}
	if err != nil {
		return fmt.Errorf("refund reconcile: %w", err)
	}
	j.logg.Info(logCtx, "refund reconcile complete")
	return nil
}
