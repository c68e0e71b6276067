package orders

import (
	"testing"

	"github.com/brasilcart/storefront-backend/pkg/enums"
)

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusProcessing, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderStatusProcessing, enums.OrderStatusCompleted, false},
		{enums.OrderStatusShipped, enums.OrderStatusCompleted, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCompleted, enums.OrderStatusPending, false},
		{enums.OrderStatusCancelled, enums.OrderStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		from    enums.PaymentStatus
		to      enums.PaymentStatus
		allowed bool
	}{
		{enums.PaymentStatusPending, enums.PaymentStatusApproved, true},
		{enums.PaymentStatusPending, enums.PaymentStatusRefunded, false},
		{enums.PaymentStatusProcessing, enums.PaymentStatusDeclined, true},
		{enums.PaymentStatusDeclined, enums.PaymentStatusProcessing, true},
		{enums.PaymentStatusApproved, enums.PaymentStatusRefunded, true},
		{enums.PaymentStatusApproved, enums.PaymentStatusDeclined, false},
		{enums.PaymentStatusRefunded, enums.PaymentStatusApproved, false},
	}
	for _, tc := range cases {
		if got := CanTransitionPayment(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransitionPayment(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}
