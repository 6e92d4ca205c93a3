package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

// MaxItemsPerOrder bounds the work a single webhook delivery can trigger.
const MaxItemsPerOrder = 200

// Outcome is the result of applying one line item.
type Outcome string

const (
	OutcomeDecremented Outcome = "decremented"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

// ItemResult records what happened to a single order line.
type ItemResult struct {
	OrderItemID      uuid.UUID
	ProductID        uuid.UUID
	VariantID        *uuid.UUID
	Quantity         int
	PreviousQuantity int
	NewQuantity      int
	Outcome          Outcome
	Err              error
}

// Report summarises a ledger pass over an order.
type Report struct {
	Items []ItemResult
}

func (r Report) count(outcome Outcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

func (r Report) Decremented() int { return r.count(OutcomeDecremented) }
func (r Report) Skipped() int     { return r.count(OutcomeSkipped) }

// Failures returns the items whose decrement was rolled back.
func (r Report) Failures() []ItemResult {
	var out []ItemResult
	for _, item := range r.Items {
		if item.Outcome == OutcomeFailed {
			out = append(out, item)
		}
	}
	return out
}

// Err combines every per-item failure, or nil when all items succeeded.
func (r Report) Err() error {
	var err error
	for _, item := range r.Failures() {
		err = multierr.Append(err, fmt.Errorf("product %s: %w", item.ProductID, item.Err))
	}
	return err
}

// ClampedQuantity returns max(0, current-ordered).
func ClampedQuantity(current, ordered int) int {
	next := current - ordered
	if next < 0 {
		return 0
	}
	return next
}

// Ledger decrements stock for paid orders and appends the audit trail.
type Ledger struct {
	repo Repository
	logg *logger.Logger
}

// NewLedger wires a ledger with its repository.
func NewLedger(repo Repository, logg *logger.Logger) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Ledger{repo: repo, logg: logg}, nil
}

var errNotTracked = errors.New("inventory not tracked")

// ErrItemLimit marks line items beyond MaxItemsPerOrder.
var ErrItemLimit = fmt.Errorf("not applied: item limit of %d per order exceeded", MaxItemsPerOrder)

// ApplyOrder decrements stock for every line item of order inside tx. Each
// item runs under its own savepoint so a failing item is rolled back alone
// and the remaining items still apply. The caller owns the transaction.
func (l *Ledger) ApplyOrder(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) Report {
	report := Report{Items: make([]ItemResult, 0, len(items))}
	var overflow []models.OrderItem
	if len(items) > MaxItemsPerOrder {
		items, overflow = items[:MaxItemsPerOrder], items[MaxItemsPerOrder:]
		l.logg.Warn(l.logg.WithFields(ctx, map[string]any{
			"order_id":   order.ID.String(),
			"item_count": len(items) + len(overflow),
		}), "inventory.items_over_limit")
	}

	reason := fmt.Sprintf("Order %s paid", order.OrderNumber)
	orderID := order.ID
	for i, item := range items {
		result := ItemResult{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			Quantity:    item.Quantity,
		}
		itemCtx := l.logg.WithFields(ctx, map[string]any{
			"order_id":   orderID.String(),
			"product_id": item.ProductID.String(),
			"variant_id": variantString(item.VariantID),
			"quantity":   item.Quantity,
		})

		err := db.WithSavepoint(tx, fmt.Sprintf("inventory_item_%d", i), func(stx *gorm.DB) error {
			repo := l.repo.WithTx(stx)
			record, err := repo.FindForUpdate(ctx, item.ProductID, item.VariantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errNotTracked
				}
				return fmt.Errorf("load inventory: %w", err)
			}

			result.PreviousQuantity = record.Quantity
			result.NewQuantity = ClampedQuantity(record.Quantity, item.Quantity)
			if err := repo.UpdateQuantity(ctx, record.ID, result.NewQuantity); err != nil {
				return fmt.Errorf("update inventory: %w", err)
			}
			entry := &models.InventoryHistory{
				InventoryID:      record.ID,
				OrderID:          &orderID,
				PreviousQuantity: result.PreviousQuantity,
				NewQuantity:      result.NewQuantity,
				ChangeType:       enums.InventoryChangeStockOut,
				Reason:           reason,
			}
			if err := repo.AppendHistory(ctx, entry); err != nil {
				return fmt.Errorf("append inventory history: %w", err)
			}
			return nil
		})

		switch {
		case err == nil:
			result.Outcome = OutcomeDecremented
			if result.PreviousQuantity < item.Quantity {
				l.logg.Warn(l.logg.WithField(itemCtx, "previous_quantity", result.PreviousQuantity), "inventory.clamped_to_zero")
			}
		case errors.Is(err, errNotTracked):
			result.Outcome = OutcomeSkipped
			l.logg.Warn(itemCtx, "inventory.record_missing")
		default:
			result.Outcome = OutcomeFailed
			result.Err = err
			l.logg.Error(itemCtx, "inventory.decrement_failed", err)
		}
		report.Items = append(report.Items, result)
	}
	// Items past the limit are reported as failed so they are alerted on.
	for _, item := range overflow {
		report.Items = append(report.Items, ItemResult{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			Quantity:    item.Quantity,
			Outcome:     OutcomeFailed,
			Err:         ErrItemLimit,
		})
	}
	return report
}

func variantString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
