package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
)

// Repository persists payment log entries. The table is append-only; the only
// delete path is the retention sweep.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Insert(ctx context.Context, entry *models.PaymentLogEntry) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID, limit int) ([]models.PaymentLogEntry, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]models.PaymentLogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit log repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, entry *models.PaymentLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByPayment(ctx context.Context, paymentID uuid.UUID, limit int) ([]models.PaymentLogEntry, error) {
	var entries []models.PaymentLogEntry
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]models.PaymentLogEntry, error) {
	var entries []models.PaymentLogEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&entries).Error
	return entries, err
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.PaymentLogEntry{})
	return result.RowsAffected, result.Error
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
