package enums

import "slices"

// PaymentStatus tracks the payment side of an order's lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusPaid            PaymentStatus = "paid"
	PaymentStatusFailed          PaymentStatus = "failed"
	PaymentStatusRefundInitiated PaymentStatus = "refund_initiated"
	PaymentStatusRefundCompleted PaymentStatus = "refund_completed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefundInitiated,
	PaymentStatusRefundCompleted,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	return slices.Contains(validPaymentStatuses, p)
}

// IsCaptured reports whether money has been collected for the order, whether
// or not a refund has since been started.
func (p PaymentStatus) IsCaptured() bool {
	switch p {
	case PaymentStatusPaid, PaymentStatusRefundInitiated, PaymentStatusRefundCompleted:
		return true
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, validPaymentStatuses)
}
