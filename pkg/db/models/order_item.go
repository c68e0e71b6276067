package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/types"
)

// OrderItem is the immutable snapshot of a purchased line, decoupled from
// live product state.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index:idx_order_items_order_id"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	ProductName    string     `gorm:"column:product_name;not null"`
	ProductSKU     string     `gorm:"column:product_sku;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	SalePriceCents *int       `gorm:"column:sale_price_cents"`
	Quantity       int        `gorm:"column:quantity;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// Stockable resolves the inventory unit this line held stock against.
func (i OrderItem) Stockable() types.Stockable {
	if i.VariantID != nil {
		return types.VariantStockable(*i.VariantID)
	}
	return types.ProductStockable(i.ProductID)
}
