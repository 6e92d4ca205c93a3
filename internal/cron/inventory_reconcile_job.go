package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const (
	defaultInventoryGrace = 10 * time.Minute
	defaultBatchSize      = 100
)

type paidOrderLister interface {
	ListPaidAwaitingInventory(ctx context.Context, paidBefore time.Time, limit int) ([]models.Order, error)
}

type inventoryApplier interface {
	ApplyPendingInventory(ctx context.Context, orderID uuid.UUID) (enums.WebhookOutcome, error)
}

type InventoryReconcileJobParams struct {
	Logger    *logger.Logger
	Orders    paidOrderLister
	Payments  inventoryApplier
	Grace     time.Duration
	BatchSize int
}

// NewInventoryReconcileJob applies the ledger to paid orders whose capture
// committed without marking inventory as applied.
func NewInventoryReconcileJob(params InventoryReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultInventoryGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &inventoryReconcileJob{
		logg:     params.Logger,
		orders:   params.Orders,
		payments: params.Payments,
		grace:    grace,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type inventoryReconcileJob struct {
	logg     *logger.Logger
	orders   paidOrderLister
	payments inventoryApplier
	grace    time.Duration
	batch    int
	now      func() time.Time
}

func (j *inventoryReconcileJob) Name() string { return "inventory-reconcile" }

func (j *inventoryReconcileJob) Run(ctx context.Context) error {
	paidBefore := j.now().UTC().Add(-j.grace)
	orders, err := j.orders.ListPaidAwaitingInventory(ctx, paidBefore, j.batch)
	if err != nil {
		return fmt.Errorf("list paid orders awaiting inventory: %w", err)
	}

	applied := 0
	var errs error
	for _, order := range orders {
		orderCtx := j.logg.WithField(ctx, "order_id", order.ID.String())
		outcome, err := j.payments.ApplyPendingInventory(orderCtx, order.ID)
		if err != nil {
			j.logg.Error(orderCtx, "inventory reconcile failed for order", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if outcome == enums.WebhookOutcomeProcessed {
			applied++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"paid_before": paidBefore,
		"candidates":  len(orders),
		"applied":     applied,
	}), "inventory reconcile complete")
	return errs
}
