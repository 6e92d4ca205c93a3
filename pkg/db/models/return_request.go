package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// ReturnRequest is a customer return. Only approved returns can be refunded.
type ReturnRequest struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	Status            enums.ReturnStatus `gorm:"column:status;not null"`
	FinalRefundAmount decimal.Decimal    `gorm:"column:final_refund_amount;type:numeric(12,2);not null"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReturnRequest) TableName() string { return "return_requests" }

func (r *ReturnRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReturnStatusHistory is an append-only record of return status changes.
type ReturnStatusHistory struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ReturnRequestID uuid.UUID          `gorm:"column:return_request_id;type:uuid;not null"`
	FromStatus      enums.ReturnStatus `gorm:"column:from_status;not null"`
	ToStatus        enums.ReturnStatus `gorm:"column:to_status;not null"`
	Note            string             `gorm:"column:note;not null"`
	ChangedBy       *uuid.UUID         `gorm:"column:changed_by;type:uuid"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (ReturnStatusHistory) TableName() string { return "return_status_history" }

func (h *ReturnStatusHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
