package webhooks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/internal/auditlog"
	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/redis"
)

// idempotencyScope namespaces processed gateway event ids in Redis.
const idempotencyScope = "gateway-webhook"

// processedTTL bounds how long a processed event id blocks replays. Gateways
// redeliver for at most a few days; a week of memory is plenty.
const processedTTL = 7 * 24 * time.Hour

type paymentApplier interface {
	ApplyGatewayStatus(ctx context.Context, gatewayTxID string, status enums.PaymentStatus, reason string) (*models.Payment, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry auditlog.Entry)
}

// Event is the gateway's webhook envelope.
type Event struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
	OccurredAt    string `json:"occurred_at,omitempty"`
}

type ServiceParams struct {
	Payments    paymentApplier
	Audit       auditRecorder
	Idempotency redis.IdempotencyStore
}

// Service applies gateway payment notifications exactly once.
type Service struct {
	payments    paymentApplier
	audit       auditRecorder
	idempotency redis.IdempotencyStore
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment applier required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	}
	if params.Idempotency == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency store required")
	}
	return &Service{
		payments:    params.Payments,
		audit:       params.Audit,
		idempotency: params.Idempotency,
	}, nil
}

// HandleEvent processes one gateway notification. Redelivered events are
// recognized by event id and acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}
	if strings.TrimSpace(event.EventID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if strings.TrimSpace(event.TransactionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	status, handled := statusForEventType(event.Type)
	if !handled {
		// Unknown event types are acknowledged so the gateway stops
		// redelivering them.
		return nil
	}

	key := s.idempotency.IdempotencyKey(idempotencyScope, event.EventID)
	fresh, err := s.idempotency.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), processedTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check webhook idempotency")
	}
	if !fresh {
		return nil
	}

	payment, err := s.payments.ApplyGatewayStatus(ctx, event.TransactionID, status, event.Reason)
	if err != nil {
		// Release the marker so the gateway's retry can land. Conflicts
		// stay marked: the payment already moved past this event.
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			_ = s.idempotency.Del(ctx, key)
		}
		return err
	}

	s.audit.Record(ctx, auditlog.Entry{
		PaymentID: paymentID(payment),
		OrderID:   orderID(payment),
		Action:    enums.PaymentLogActionWebhook,
		Status:    string(status),
		Request:   event,
	})
	return nil
}

func statusForEventType(eventType string) (enums.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "payment.approved", "payment.confirmed":
		return enums.PaymentStatusApproved, true
	case "payment.declined":
		return enums.PaymentStatusDeclined, true
	case "payment.failed":
		return enums.PaymentStatusFailed, true
	case "payment.expired":
		return enums.PaymentStatusExpired, true
	case "payment.refunded":
		return enums.PaymentStatusRefunded, true
	default:
		return "", false
	}
}

func paymentID(payment *models.Payment) *uuid.UUID {
	if payment == nil {
		return nil
	}
	return &payment.ID
}

func orderID(payment *models.Payment) *uuid.UUID {
	if payment == nil {
		return nil
	}
	return &payment.OrderID
}
