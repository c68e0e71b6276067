package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/types"
)

// CartItem is a cart line with prices captured at add time, never live-repriced.
type CartItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID  `gorm:"column:cart_id;type:uuid;not null;index:idx_cart_items_cart_id"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	ProductName    string     `gorm:"column:product_name;not null"`
	ProductSKU     string     `gorm:"column:product_sku;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	SalePriceCents *int       `gorm:"column:sale_price_cents"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Stockable resolves the inventory unit this line holds stock against.
func (i CartItem) Stockable() types.Stockable {
	if i.VariantID != nil {
		return types.VariantStockable(*i.VariantID)
	}
	return types.ProductStockable(i.ProductID)
}

// EffectiveUnitPriceCents returns the sale price when present.
func (i CartItem) EffectiveUnitPriceCents() int {
	if i.SalePriceCents != nil && *i.SalePriceCents > 0 && *i.SalePriceCents < i.UnitPriceCents {
		return *i.SalePriceCents
	}
	return i.UnitPriceCents
}

// LineTotalCents is quantity times the effective unit price.
func (i CartItem) LineTotalCents() int {
	return i.Quantity * i.EffectiveUnitPriceCents()
}
