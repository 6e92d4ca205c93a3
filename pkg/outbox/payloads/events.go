package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// OrderPaidEvent is emitted once per order when the gateway confirms capture.
type OrderPaidEvent struct {
	OrderID           uuid.UUID       `json:"order_id"`
	OrderNumber       string          `json:"order_number"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
	PaidAt            time.Time       `json:"paid_at"`
	ItemsDecremented  int             `json:"items_decremented"`
	ItemsSkipped      int             `json:"items_skipped"`
	ItemsFailed       int             `json:"items_failed"`
}

// OrderPaymentFailedEvent is emitted when the gateway reports a failed attempt.
type OrderPaymentFailedEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	OrderNumber       string    `json:"order_number"`
	RazorpayPaymentID string    `json:"razorpay_payment_id"`
	Reason            string    `json:"reason"`
}

// InventoryFailure describes one line item whose stock was not decremented.
type InventoryFailure struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
	Error     string     `json:"error"`
}

// InventoryDecrementFailedEvent is the reconciliation alert for stock drift.
type InventoryDecrementFailedEvent struct {
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Failures    []InventoryFailure `json:"failures"`
}

// RefundEvent covers refund_initiated, refund_processed and refund_failed.
type RefundEvent struct {
	RefundTransactionID uuid.UUID          `json:"refund_transaction_id"`
	TransactionNumber   string             `json:"transaction_number"`
	ReturnRequestID     uuid.UUID          `json:"return_request_id"`
	OrderID             uuid.UUID          `json:"order_id"`
	RazorpayPaymentID   string             `json:"razorpay_payment_id"`
	RazorpayRefundID    string             `json:"razorpay_refund_id,omitempty"`
	Status              enums.RefundStatus `json:"status"`
	Amount              decimal.Decimal    `json:"amount"`
	FailureReason       string             `json:"failure_reason,omitempty"`
}
