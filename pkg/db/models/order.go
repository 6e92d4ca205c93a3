package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// Order is a customer purchase. RazorpayOrderID is assigned at checkout and
// RazorpayPaymentID once the gateway confirms capture; both are unique.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null"`
	CustomerID         *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	Status             enums.OrderStatus   `gorm:"column:status;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;not null"`
	RazorpayOrderID    *string             `gorm:"column:razorpay_order_id"`
	RazorpayPaymentID  *string             `gorm:"column:razorpay_payment_id"`
	PaymentError       *string             `gorm:"column:payment_error"`
	PaymentDetails     json.RawMessage     `gorm:"column:payment_details;type:jsonb"`
	Subtotal           decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Total              decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Currency           string              `gorm:"column:currency;not null;default:INR"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	InventoryAppliedAt *time.Time          `gorm:"column:inventory_applied_at"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
