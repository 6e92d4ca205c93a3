package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// InventoryRecord holds current stock for a (product, variant) pair.
type InventoryRecord struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity  int        `gorm:"column:quantity;not null;default:0"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryRecord) TableName() string { return "inventory" }

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// InventoryHistory is an append-only audit row. CreatedBy is nil for system
// changes.
type InventoryHistory struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID      uuid.UUID                 `gorm:"column:inventory_id;type:uuid;not null"`
	OrderID          *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	PreviousQuantity int                       `gorm:"column:previous_quantity;not null"`
	NewQuantity      int                       `gorm:"column:new_quantity;not null"`
	ChangeType       enums.InventoryChangeType `gorm:"column:change_type;not null"`
	Reason           string                    `gorm:"column:reason;not null"`
	CreatedBy        *uuid.UUID                `gorm:"column:created_by;type:uuid"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryHistory) TableName() string { return "inventory_history" }

func (h *InventoryHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
