package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is an immutable line of an order. A nil VariantID means the
// product is sold without size/colour variants.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
