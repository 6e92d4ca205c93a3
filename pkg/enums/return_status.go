package enums

import "slices"

// ReturnStatus tracks a customer return request.
type ReturnStatus string

const (
	ReturnStatusPending         ReturnStatus = "pending"
	ReturnStatusApproved        ReturnStatus = "approved"
	ReturnStatusRejected        ReturnStatus = "rejected"
	ReturnStatusRefundInitiated ReturnStatus = "refund_initiated"
	ReturnStatusRefundCompleted ReturnStatus = "refund_completed"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusRejected,
	ReturnStatusRefundInitiated,
	ReturnStatusRefundCompleted,
}

// String implements fmt.Stringer.
func (r ReturnStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnStatus.
func (r ReturnStatus) IsValid() bool {
	return slices.Contains(validReturnStatuses, r)
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	return parse("return status", value, validReturnStatuses)
}
