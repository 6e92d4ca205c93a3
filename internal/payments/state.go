package payments

import "github.com/angelmondragon/storefront-payments/pkg/enums"

// transitions lists the payment statuses each status may move to.
// refund_initiated -> paid is the revert applied when a refund fails.
var transitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending:         {enums.PaymentStatusPaid, enums.PaymentStatusFailed},
	enums.PaymentStatusFailed:          {enums.PaymentStatusPaid, enums.PaymentStatusFailed},
	enums.PaymentStatusPaid:            {enums.PaymentStatusRefundInitiated},
	enums.PaymentStatusRefundInitiated: {enums.PaymentStatusRefundCompleted, enums.PaymentStatusPaid},
	enums.PaymentStatusRefundCompleted: {},
}

// CanTransition reports whether an order's payment status may move from
// one value to another.
func CanTransition(from, to enums.PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
