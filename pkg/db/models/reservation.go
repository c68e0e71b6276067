package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/types"
)

// Reservation is a time-bound hold on stock tied to a cart. One row exists
// per (cart, stockable) pair; converted rows are kept for the audit trail.
type Reservation struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Stockable   types.Stockable `gorm:"embedded;embeddedPrefix:stockable_"`
	CartID      uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index:idx_reservations_cart_id"`
	Quantity    int             `gorm:"column:quantity;not null"`
	ExpiresAt   time.Time       `gorm:"column:expires_at;not null;index:idx_reservations_expires_at"`
	ConvertedAt *time.Time      `gorm:"column:converted_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Active reports whether the hold still counts against availability.
func (r Reservation) Active(now time.Time) bool {
	return r.ConvertedAt == nil && r.ExpiresAt.After(now)
}
