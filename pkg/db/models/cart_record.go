package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/enums"
)

// CartRecord is a customer's open cart. Converted is terminal; a converted
// cart is never reused for reservations or checkout.
type CartRecord struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     *uuid.UUID       `gorm:"column:customer_id;type:uuid"`
	SessionID      *string          `gorm:"column:session_id"`
	Status         enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	SubtotalCents  int              `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents  int              `gorm:"column:discount_cents;not null;default:0"`
	TotalCents     int              `gorm:"column:total_cents;not null;default:0"`
	ConvertedAt    *time.Time       `gorm:"column:converted_at"`
	Items          []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
