package enums

import "slices"

// RefundStatus tracks a single refund attempt against the gateway.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusInitiated RefundStatus = "initiated"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusPending,
	RefundStatusInitiated,
	RefundStatusProcessed,
	RefundStatusFailed,
}

// String implements fmt.Stringer.
func (r RefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	return slices.Contains(validRefundStatuses, r)
}

// IsTerminal reports whether no further transition is possible.
func (r RefundStatus) IsTerminal() bool {
	return r == RefundStatusProcessed || r == RefundStatusFailed
}

func (r RefundStatus) rank() int {
	switch r {
	case RefundStatusPending:
		return 0
	case RefundStatusInitiated:
		return 1
	case RefundStatusProcessed, RefundStatusFailed:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether moving from r to next keeps the status
// sequence within pending, initiated, then processed or failed.
func (r RefundStatus) CanAdvanceTo(next RefundStatus) bool {
	if !r.IsValid() || !next.IsValid() {
		return false
	}
	return next.rank() > r.rank()
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	return parse("refund status", value, validRefundStatuses)
}
