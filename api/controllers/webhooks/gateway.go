package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/brasilcart/storefront-backend/api/responses"
	gatewaywebhook "github.com/brasilcart/storefront-backend/internal/webhooks"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/logger"
)

const (
	signatureHeader = "X-Gateway-Signature"
	timestampHeader = "X-Gateway-Timestamp"
)

type GatewayWebhookService interface {
	HandleEvent(ctx context.Context, event *gatewaywebhook.Event) error
}

// GatewayWebhook ingests payment notifications from the gateway. The
// signature covers "<timestamp>.<body>" so a captured payload cannot be
// replayed outside the tolerance window.
func GatewayWebhook(svc GatewayWebhookService, secret string, tolerance time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway signature missing"))
			return
		}

		tsHeader := r.Header.Get(timestampHeader)
		if !timestampFresh(tsHeader, tolerance, time.Now()) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook timestamp outside tolerance"))
			return
		}

		if !validateGatewaySignature(payload, tsHeader, secret, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid gateway signature"))
			return
		}

		var event gatewaywebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("gateway event %s processed", event.EventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

func timestampFresh(header string, tolerance time.Duration, now time.Time) bool {
	if header == "" {
		return false
	}
	unix, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return false
	}
	ts := time.Unix(unix, 0)
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func validateGatewaySignature(payload []byte, timestamp, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
