package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	gatewaywebhook "github.com/brasilcart/storefront-backend/internal/webhooks"
)

type fakeWebhookService struct {
	calls int
	last  *gatewaywebhook.Event
	err   error
}

func (f *fakeWebhookService) HandleEvent(_ context.Context, event *gatewaywebhook.Event) error {
	f.calls++
	f.last = event
	return f.err
}

func buildGatewayEvent(t *testing.T, eventType string) []byte {
	t.Helper()
	payload, err := json.Marshal(gatewaywebhook.Event{
		EventID:       "evt_" + uuid.NewString(),
		Type:          eventType,
		TransactionID: "tx_" + uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func signGatewayPayload(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func postGatewayEvent(handler http.HandlerFunc, payload []byte, timestamp, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set(timestampHeader, timestamp)
	req.Header.Set(signatureHeader, signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGatewayWebhookDeliversVerifiedEvents(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.approved")
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	service := &fakeWebhookService{}
	handler := GatewayWebhook(service, "secret", 5*time.Minute, nil)

	rec := postGatewayEvent(handler, payload, timestamp, signGatewayPayload(payload, timestamp, "secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.last == nil || service.last.Type != "payment.approved" {
		t.Fatalf("event not delivered to service: %+v", service.last)
	}
}

func TestGatewayWebhookRejectsBadSignature(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.declined")
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	service := &fakeWebhookService{}
	handler := GatewayWebhook(service, "secret", 5*time.Minute, nil)

	rec := postGatewayEvent(handler, payload, timestamp, signGatewayPayload(payload, timestamp, "wrong-secret"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not run on invalid signature")
	}
}

func TestGatewayWebhookRejectsStaleTimestamp(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.approved")
	stale := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	service := &fakeWebhookService{}
	handler := GatewayWebhook(service, "secret", 5*time.Minute, nil)

	rec := postGatewayEvent(handler, payload, stale, signGatewayPayload(payload, stale, "secret"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not run on stale timestamp")
	}
}

func TestGatewayWebhookRejectsTamperedBody(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.approved")
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := signGatewayPayload(payload, timestamp, "secret")
	service := &fakeWebhookService{}
	handler := GatewayWebhook(service, "secret", 5*time.Minute, nil)

	tampered := bytes.Replace(payload, []byte("payment.approved"), []byte("payment.refunded"), 1)
	rec := postGatewayEvent(handler, tampered, timestamp, signature)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered body, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not run on tampered body")
	}
}

func TestGatewayWebhookPropagatesServiceFailures(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.approved")
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	service := &fakeWebhookService{err: fmt.Errorf("boom")}
	handler := GatewayWebhook(service, "secret", 5*time.Minute, nil)

	rec := postGatewayEvent(handler, payload, timestamp, signGatewayPayload(payload, timestamp, "secret"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when service fails, got %d", rec.Code)
	}
	if service.calls != 1 {
		t.Fatalf("expected one service call, got %d", service.calls)
	}
}
