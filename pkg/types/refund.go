package types

import "time"

// RefundTransaction is the admin-facing view of one refund attempt. Amounts
// are decimal strings in major units.
type RefundTransaction struct {
	ID                   string     `json:"id"`
	TransactionNumber    string     `json:"transaction_number"`
	ReturnRequestID      string     `json:"return_request_id"`
	OrderID              string     `json:"order_id"`
	RazorpayPaymentID    string     `json:"razorpay_payment_id"`
	RazorpayRefundID     *string    `json:"razorpay_refund_id,omitempty"`
	Status               string     `json:"status"`
	OriginalAmount       string     `json:"original_amount"`
	RefundAmount         string     `json:"refund_amount"`
	DeductedAmount       string     `json:"deducted_amount"`
	RetryOfTransactionID *string    `json:"retry_of_transaction_id,omitempty"`
	FailureReason        *string    `json:"failure_reason,omitempty"`
	InitiatedAt          *time.Time `json:"initiated_at,omitempty"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
	FailedAt             *time.Time `json:"failed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// RefundInitiation wraps a freshly issued refund. PersistencePending is set
// when the gateway accepted the refund but the local record could not be
// updated; the refund webhook or reconcile job completes it.
type RefundInitiation struct {
	Transaction        RefundTransaction `json:"transaction"`
	PersistencePending bool              `json:"persistence_pending"`
}
