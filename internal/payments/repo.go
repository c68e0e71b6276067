package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
)

// Repository persists payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByGatewayTxID(ctx context.Context, txID string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error
	// ListPendingExternal returns pending pix and bank slip payments that
	// already have a gateway transaction attached. These settle out of band
	// and are the poll sweep's work queue.
	ListPendingExternal(ctx context.Context, limit int) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// IsNotFound reports whether err marks a missing payment row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByGatewayTxID(ctx context.Context, txID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "gateway_tx_id = ?", txID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) ListPendingExternal(ctx context.Context, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 200
	}
	var list []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentStatusPending).
		Where("method IN ?", []enums.PaymentMethod{enums.PaymentMethodPix, enums.PaymentMethodBankSlip}).
		Where("gateway_tx_id IS NOT NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
