package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

// Repository exposes reservation persistence. "Active" always means
// unconverted and unexpired at the supplied instant.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, reservation *models.Reservation) error
	Save(ctx context.Context, reservation *models.Reservation) error
	FindActive(ctx context.Context, cartID uuid.UUID, stockable types.Stockable, now time.Time) (*models.Reservation, error)
	FindActiveByCart(ctx context.Context, cartID uuid.UUID, now time.Time) ([]models.Reservation, error)
	// FindActiveByCartForUpdate locks the cart's active rows inside the
	// surrounding transaction.
	FindActiveByCartForUpdate(ctx context.Context, cartID uuid.UUID, now time.Time) ([]models.Reservation, error)
	SumActive(ctx context.Context, stockable types.Stockable, excludeCartID *uuid.UUID, now time.Time) (int, error)
	MarkConverted(ctx context.Context, ids []uuid.UUID, at time.Time) error
	DeleteActive(ctx context.Context, cartID uuid.UUID, stockable types.Stockable, now time.Time) (int64, error)
	DeleteActiveByCart(ctx context.Context, cartID uuid.UUID, now time.Time) (int64, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
	// DeleteUnconverted removes the given rows unless they were converted
	// after being scanned. Converted rows are the checkout audit trail and
	// must survive every delete path.
	DeleteUnconverted(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) Save(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

func (r *repository) FindActive(ctx context.Context, cartID uuid.UUID, stockable types.Stockable, now time.Time) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND stockable_type = ? AND stockable_id = ?", cartID, stockable.Type, stockable.ID).
		Where("converted_at IS NULL AND expires_at > ?", now).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindActiveByCart(ctx context.Context, cartID uuid.UUID, now time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND converted_at IS NULL AND expires_at > ?", cartID, now).
		Order("created_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) FindActiveByCartForUpdate(ctx context.Context, cartID uuid.UUID, now time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := forUpdate(r.db.WithContext(ctx)).
		Where("cart_id = ? AND converted_at IS NULL AND expires_at > ?", cartID, now).
		Order("created_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) SumActive(ctx context.Context, stockable types.Stockable, excludeCartID *uuid.UUID, now time.Time) (int, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("stockable_type = ? AND stockable_id = ?", stockable.Type, stockable.ID).
		Where("converted_at IS NULL AND expires_at > ?", now)
	if excludeCartID != nil {
		query = query.Where("cart_id <> ?", *excludeCartID)
	}
	var total *int
	if err := query.Select("SUM(quantity)").Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) MarkConverted(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id IN ?", ids).
		UpdateColumn("converted_at", at).Error
}

func (r *repository) DeleteActive(ctx context.Context, cartID uuid.UUID, stockable types.Stockable, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND stockable_type = ? AND stockable_id = ?", cartID, stockable.Type, stockable.ID).
		Where("converted_at IS NULL").
		Delete(&models.Reservation{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteActiveByCart(ctx context.Context, cartID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND converted_at IS NULL", cartID).
		Delete(&models.Reservation{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 500
	}
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("converted_at IS NULL AND expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// forUpdate applies a row lock on dialects that support it. SQLite (tests)
// serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *repository) DeleteUnconverted(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("id IN ? AND converted_at IS NULL", ids).
		Delete(&models.Reservation{})
	return res.RowsAffected, res.Error
}
