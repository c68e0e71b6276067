package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

// Repository exposes stock record and movement persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindStock(ctx context.Context, stockable types.Stockable) (*models.StockRecord, error)
	// FindStockForUpdate locks the stock row for the duration of the
	// surrounding transaction. This row lock serializes all availability
	// decisions for one stockable.
	FindStockForUpdate(ctx context.Context, stockable types.Stockable) (*models.StockRecord, error)
	CreateStock(ctx context.Context, record *models.StockRecord) (*models.StockRecord, error)
	AddOnHand(ctx context.Context, recordID uuid.UUID, delta int) error

	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, stockable types.Stockable, limit int) ([]models.StockMovement, error)
	ListBelowThreshold(ctx context.Context) ([]models.StockRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindStock(ctx context.Context, stockable types.Stockable) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.db.WithContext(ctx).
		Where("stockable_type = ? AND stockable_id = ?", stockable.Type, stockable.ID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindStockForUpdate(ctx context.Context, stockable types.Stockable) (*models.StockRecord, error) {
	var record models.StockRecord
	err := forUpdate(r.db.WithContext(ctx)).
		Where("stockable_type = ? AND stockable_id = ?", stockable.Type, stockable.ID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// forUpdate applies a row lock on dialects that support it. SQLite (tests)
// serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *repository) CreateStock(ctx context.Context, record *models.StockRecord) (*models.StockRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repository) AddOnHand(ctx context.Context, recordID uuid.UUID, delta int) error {
	res := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("id = ?", recordID).
		UpdateColumn("on_hand_qty", gorm.Expr("on_hand_qty + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, stockable types.Stockable, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("stockable_type = ? AND stockable_id = ?", stockable.Type, stockable.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) ListBelowThreshold(ctx context.Context) ([]models.StockRecord, error) {
	var records []models.StockRecord
	err := r.db.WithContext(ctx).
		Where("low_stock_threshold IS NOT NULL AND on_hand_qty <= low_stock_threshold").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// IsNotFound reports whether the error is a missing-row read.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
