package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("connection reset")
	err := Wrap(CodeGatewayUnavailable, cause, "charge card")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeGatewayUnavailable {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}

func TestAsThroughWrappedChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeInsufficientStock, "only 2 left").WithDetails(map[string]any{"available": 2})
	outer := fmt.Errorf("reserve cart items: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error through wrapped chain")
	}
	if typed.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
	if typed.Details() == nil {
		t.Fatal("expected details to be preserved")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal metadata fallback, got %d", meta.HTTPStatus)
	}
}

func TestDomainCodeMetadata(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code   Code
		status int
	}{
		{CodeInsufficientStock, http.StatusConflict},
		{CodeCheckoutConflict, http.StatusConflict},
		{CodeProductNotAvailable, http.StatusUnprocessableEntity},
		{CodeGatewayDeclined, http.StatusPaymentRequired},
		{CodeGatewayUnavailable, http.StatusServiceUnavailable},
		{CodeRefundNotEligible, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.code, tc.status, got)
		}
	}
}
