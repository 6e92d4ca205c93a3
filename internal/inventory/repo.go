package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
)

// Repository persists stock levels and their audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForUpdate(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.InventoryRecord, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	AppendHistory(ctx context.Context, entry *models.InventoryHistory) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindForUpdate matches a nil variant as IS NULL, never as a wildcard.
func (r *repository) FindForUpdate(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.InventoryRecord, error) {
	q := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID)
	if variantID == nil {
		q = q.Where("variant_id IS NULL")
	} else {
		q = q.Where("variant_id = ?", *variantID)
	}

	var record models.InventoryRecord
	if err := q.First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ?", id).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.InventoryHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
