package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// RefundTransaction is one attempt to refund an order's payment. A retry
// inserts a new row pointing at the failed one through RetryOfTransactionID.
type RefundTransaction struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TransactionNumber    string             `gorm:"column:transaction_number;not null;uniqueIndex"`
	ReturnRequestID      uuid.UUID          `gorm:"column:return_request_id;type:uuid;not null"`
	OrderID              uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	RazorpayPaymentID    string             `gorm:"column:razorpay_payment_id;not null"`
	RazorpayRefundID     *string            `gorm:"column:razorpay_refund_id"`
	Status               enums.RefundStatus `gorm:"column:status;not null"`
	OriginalAmount       decimal.Decimal    `gorm:"column:original_amount;type:numeric(12,2);not null"`
	RefundAmount         decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2);not null"`
	DeductedAmount       decimal.Decimal    `gorm:"column:deducted_amount;type:numeric(12,2);not null"`
	RetryOfTransactionID *uuid.UUID         `gorm:"column:retry_of_transaction_id;type:uuid"`
	FailureReason        *string            `gorm:"column:failure_reason"`
	InitiatedAt          *time.Time         `gorm:"column:initiated_at"`
	ProcessedAt          *time.Time         `gorm:"column:processed_at"`
	FailedAt             *time.Time         `gorm:"column:failed_at"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (RefundTransaction) TableName() string { return "refund_transactions" }

func (t *RefundTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
