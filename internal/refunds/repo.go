package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// Repository persists refund transactions and the return requests they
// settle. Lookups return gorm.ErrRecordNotFound when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindReturn(ctx context.Context, id uuid.UUID, lock bool) (*models.ReturnRequest, error)
	UpdateReturnStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus) (bool, error)
	AppendReturnHistory(ctx context.Context, entry *models.ReturnStatusHistory) error
	CreateTransaction(ctx context.Context, txn *models.RefundTransaction) error
	FindTransaction(ctx context.Context, id uuid.UUID, lock bool) (*models.RefundTransaction, error)
	FindByRefundID(ctx context.Context, refundID string, lock bool) (*models.RefundTransaction, error)
	FindUnlinkedPending(ctx context.Context, returnID uuid.UUID) (*models.RefundTransaction, error)
	HasActiveTransaction(ctx context.Context, returnID uuid.UUID) (bool, error)
	ListForReturn(ctx context.Context, returnID uuid.UUID) ([]models.RefundTransaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, from enums.RefundStatus, updates map[string]any) (bool, error)
	ListByStatusBefore(ctx context.Context, status enums.RefundStatus, before time.Time, limit int) ([]models.RefundTransaction, error)
}

var activeStatuses = []enums.RefundStatus{enums.RefundStatusPending, enums.RefundStatusInitiated}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refunds repository bound to the provided DB.
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

func (r *repository) FindReturn(ctx context.Context, id uuid.UUID, lock bool) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.query(ctx, lock).Where("id = ?", id).First(&ret).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) UpdateReturnStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendReturnHistory(ctx context.Context, entry *models.ReturnStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.RefundTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID, lock bool) (*models.RefundTransaction, error) {
	var txn models.RefundTransaction
	if err := r.query(ctx, lock).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByRefundID(ctx context.Context, refundID string, lock bool) (*models.RefundTransaction, error) {
	var txn models.RefundTransaction
	if err := r.query(ctx, lock).Where("razorpay_refund_id = ?", refundID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindUnlinkedPending(ctx context.Context, returnID uuid.UUID) (*models.RefundTransaction, error) {
	var txn models.RefundTransaction
	err := r.query(ctx, true).
		Where("return_request_id = ? AND status = ? AND razorpay_refund_id IS NULL", returnID, enums.RefundStatusPending).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) HasActiveTransaction(ctx context.Context, returnID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.RefundTransaction{}).
		Where("return_request_id = ? AND status IN ?", returnID, activeStatuses).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) ListForReturn(ctx context.Context, returnID uuid.UUID) ([]models.RefundTransaction, error) {
	var rows []models.RefundTransaction
	err := r.db.WithContext(ctx).
		Where("return_request_id = ?", returnID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, id uuid.UUID, from enums.RefundStatus, updates map[string]any) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.RefundTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByStatusBefore(ctx context.Context, status enums.RefundStatus, before time.Time, limit int) ([]models.RefundTransaction, error) {
	var rows []models.RefundTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
