package orders

import "github.com/brasilcart/storefront-backend/pkg/enums"

// Legal order status transitions. Anything absent is rejected.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusCompleted},
	enums.OrderStatusCompleted:  {},
	enums.OrderStatusCancelled:  {},
}

// Legal payment status transitions as seen from the order. Retries move a
// settled failure back into processing when a new attempt starts.
var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending:    {enums.PaymentStatusProcessing, enums.PaymentStatusApproved, enums.PaymentStatusDeclined, enums.PaymentStatusFailed, enums.PaymentStatusExpired},
	enums.PaymentStatusProcessing: {enums.PaymentStatusApproved, enums.PaymentStatusDeclined, enums.PaymentStatusFailed, enums.PaymentStatusExpired},
	enums.PaymentStatusDeclined:   {enums.PaymentStatusProcessing, enums.PaymentStatusApproved},
	enums.PaymentStatusFailed:     {enums.PaymentStatusProcessing, enums.PaymentStatusApproved},
	enums.PaymentStatusExpired:    {enums.PaymentStatusProcessing, enums.PaymentStatusApproved},
	enums.PaymentStatusApproved:   {enums.PaymentStatusRefunded},
	enums.PaymentStatusRefunded:   {},
}

// CanTransition reports whether the order status change is legal.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether the payment status change is legal.
func CanTransitionPayment(from, to enums.PaymentStatus) bool {
	for _, candidate := range paymentTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
