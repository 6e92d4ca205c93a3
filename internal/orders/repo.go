package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// payableStatuses are the payment states a capture or a failure may move from.
var payableStatuses = []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) query(ctx context.Context, lock bool) *gorm.DB {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error) {
	var order models.Order
	if err := r.query(ctx, lock).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string, lock bool) (*models.Order, error) {
	var order models.Order
	if err := r.query(ctx, lock).Where("razorpay_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("razorpay_payment_id = ?", paymentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?", orderID, payableStatuses).
		Updates(map[string]any{
			"payment_status":      enums.PaymentStatusPaid,
			"razorpay_payment_id": paymentID,
			"payment_error":       nil,
			"paid_at":             paidAt,
			"status":              gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", enums.OrderStatusPending, enums.OrderStatusConfirmed),
			"updated_at":          paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string, details json.RawMessage, at time.Time) (bool, error) {
	updates := map[string]any{
		"payment_status": enums.PaymentStatusFailed,
		"payment_error":  reason,
		"updated_at":     at,
	}
	if len(details) > 0 {
		updates["payment_details"] = details
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?", orderID, payableStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkInventoryApplied(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND inventory_applied_at IS NULL", orderID).
		Updates(map[string]any{"inventory_applied_at": at, "updated_at": at}).Error
}

func (r *repository) TransitionPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentStatus) (bool, error) {
	updates := map[string]any{
		"payment_status": to,
		"updated_at":     time.Now().UTC(),
	}
	if to == enums.PaymentStatusRefundCompleted {
		updates["status"] = enums.OrderStatusRefunded
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListPaidAwaitingInventory(ctx context.Context, paidBefore time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND inventory_applied_at IS NULL", enums.PaymentStatusPaid).
		Where("paid_at IS NULL OR paid_at < ?", paidBefore).
		Order("paid_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
