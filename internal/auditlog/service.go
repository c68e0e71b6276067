package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
)

// Entry describes one gateway interaction to record. Request and Response are
// marshaled and sanitized before they touch the database.
type Entry struct {
	PaymentID    *uuid.UUID
	OrderID      *uuid.UUID
	Action       enums.PaymentLogAction
	Status       string
	Request      any
	Response     any
	ResponseTime time.Duration
}

// Service records and queries the payment audit trail.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService builds the audit log service.
func NewService(repo Repository, logger zerolog.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "auditlog service requires a repository")
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Record writes one sanitized audit entry. Failures are logged but never
// propagated; a broken audit trail must not fail the payment it describes.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if !entry.Action.IsValid() {
		s.logger.Error().Str("action", entry.Action.String()).Msg("dropping audit entry with unknown action")
		return
	}
	row := models.PaymentLogEntry{
		PaymentID:      entry.PaymentID,
		OrderID:        entry.OrderID,
		Action:         entry.Action,
		Status:         entry.Status,
		ResponseTimeMs: entry.ResponseTime.Milliseconds(),
	}
	if entry.Request != nil {
		row.RequestPayload = SanitizeAny(entry.Request)
	}
	if entry.Response != nil {
		row.ResponsePayload = SanitizeAny(entry.Response)
	}
	if err := s.repo.Insert(ctx, &row); err != nil {
		s.logger.Error().Err(err).Str("action", entry.Action.String()).Msg("failed to persist audit entry")
	}
}

// HistoryForPayment returns the newest entries for one payment.
func (s *Service) HistoryForPayment(ctx context.Context, paymentID uuid.UUID, limit int) ([]models.PaymentLogEntry, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	entries, err := s.repo.ListByPayment(ctx, paymentID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list audit entries")
	}
	return entries, nil
}

// HistoryForOrder returns the newest entries for one order.
func (s *Service) HistoryForOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]models.PaymentLogEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	entries, err := s.repo.ListByOrder(ctx, orderID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list audit entries")
	}
	return entries, nil
}

// Prune removes entries older than the cutoff and reports how many went.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to prune audit entries")
	}
	return removed, nil
}
