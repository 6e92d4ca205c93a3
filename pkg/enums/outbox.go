package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder             OutboxAggregateType = "order"
	AggregateRefundTransaction OutboxAggregateType = "refund_transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateRefundTransaction,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, validAggregateTypes)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderPaid                OutboxEventType = "order_paid"
	EventOrderPaymentFailed       OutboxEventType = "order_payment_failed"
	EventInventoryDecrementFailed OutboxEventType = "inventory_decrement_failed"
	EventRefundInitiated          OutboxEventType = "refund_initiated"
	EventRefundProcessed          OutboxEventType = "refund_processed"
	EventRefundFailed             OutboxEventType = "refund_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPaid,
	EventOrderPaymentFailed,
	EventInventoryDecrementFailed,
	EventRefundInitiated,
	EventRefundProcessed,
	EventRefundFailed,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, validOutboxEventTypes)
}
