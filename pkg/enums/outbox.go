package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregatePayment     OutboxAggregateType = "payment"
	AggregateCart        OutboxAggregateType = "cart"
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateStock       OutboxAggregateType = "stock"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateCart,
	AggregateReservation,
	AggregateStock,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventOrderPaid           OutboxEventType = "order_paid"
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventPaymentApproved     OutboxEventType = "payment_approved"
	EventPaymentFailed       OutboxEventType = "payment_failed"
	EventPaymentRefunded     OutboxEventType = "payment_refunded"
	EventReservationExpired  OutboxEventType = "reservation_expired"
	EventCartConverted       OutboxEventType = "cart_converted"
	EventStockBelowThreshold OutboxEventType = "stock_below_threshold"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaid,
	EventOrderCancelled,
	EventPaymentApproved,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventReservationExpired,
	EventCartConverted,
	EventStockBelowThreshold,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
