package webhooks

import (
	"context"
	"testing"
	"time"

	"github.com/brasilcart/storefront-backend/internal/auditlog"
	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
)

func TestHandleEventAppliesStatusOnce(t *testing.T) {
	t.Parallel()

	applier := &stubApplier{}
	audit := &captureAudit{}
	svc := newTestService(t, applier, audit, newMemoryStore())

	event := &Event{EventID: "evt_1", Type: "payment.approved", TransactionID: "pix_abc"}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if len(applier.calls) != 1 {
		t.Fatalf("apply calls = %d, want 1", len(applier.calls))
	}
	call := applier.calls[0]
	if call.txID != "pix_abc" || call.status != enums.PaymentStatusApproved {
		t.Fatalf("unexpected apply: %+v", call)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != enums.PaymentLogActionWebhook {
		t.Fatalf("audit entries = %+v", audit.entries)
	}
}

func TestHandleEventReleasesMarkerOnFailure(t *testing.T) {
	t.Parallel()

	applier := &stubApplier{err: pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")}
	svc := newTestService(t, applier, &captureAudit{}, newMemoryStore())

	event := &Event{EventID: "evt_2", Type: "payment.declined", TransactionID: "tx_1", Reason: "issuer timeout"}
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected failure to propagate")
	}

	// The retry must be allowed through once the downstream recovers.
	applier.err = nil
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(applier.calls) != 2 {
		t.Fatalf("apply calls = %d, want 2", len(applier.calls))
	}
}

func TestHandleEventKeepsMarkerOnStateConflict(t *testing.T) {
	t.Parallel()

	applier := &stubApplier{err: pkgerrors.New(pkgerrors.CodeStateConflict, "already refunded")}
	svc := newTestService(t, applier, &captureAudit{}, newMemoryStore())

	event := &Event{EventID: "evt_3", Type: "payment.approved", TransactionID: "tx_2"}
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected conflict to propagate")
	}

	applier.err = nil
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery after conflict: %v", err)
	}
	if len(applier.calls) != 1 {
		t.Fatalf("conflicting event was reapplied: %d calls", len(applier.calls))
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	t.Parallel()

	applier := &stubApplier{}
	svc := newTestService(t, applier, &captureAudit{}, newMemoryStore())

	if err := svc.HandleEvent(context.Background(), &Event{EventID: "evt_4", Type: "customer.updated", TransactionID: "tx_3"}); err != nil {
		t.Fatalf("unknown type should be acknowledged: %v", err)
	}
	if len(applier.calls) != 0 {
		t.Fatalf("unknown type reached the applier: %+v", applier.calls)
	}
}

func TestHandleEventValidatesEnvelope(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubApplier{}, &captureAudit{}, newMemoryStore())

	cases := []*Event{
		nil,
		{Type: "payment.approved", TransactionID: "tx"},
		{EventID: "evt", Type: "payment.approved"},
	}
	for _, event := range cases {
		err := svc.HandleEvent(context.Background(), event)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("event %+v: expected validation error, got %v", event, err)
		}
	}
}

type applyCall struct {
	txID   string
	status enums.PaymentStatus
	reason string
}

type stubApplier struct {
	calls []applyCall
	err   error
}

func (s *stubApplier) ApplyGatewayStatus(_ context.Context, txID string, status enums.PaymentStatus, reason string) (*models.Payment, error) {
	s.calls = append(s.calls, applyCall{txID: txID, status: status, reason: reason})
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payment{Status: status}, nil
}

type captureAudit struct {
	entries []auditlog.Entry
}

func (c *captureAudit) Record(_ context.Context, entry auditlog.Entry) {
	c.entries = append(c.entries, entry)
}

type memoryStore struct {
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func newTestService(t *testing.T, applier *stubApplier, audit *captureAudit, store *memoryStore) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Payments: applier, Audit: audit, Idempotency: store})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
