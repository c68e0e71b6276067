package types

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/enums"
)

// Stockable identifies the unit inventory is tracked against: a product or
// one of its variants. Resolved once at the API boundary and carried as a
// value through the core.
type Stockable struct {
	Type enums.StockableType `gorm:"column:type;type:text;not null" json:"type"`
	ID   uuid.UUID           `gorm:"column:id;type:uuid;not null" json:"id"`
}

// ProductStockable builds a Stockable for a product.
func ProductStockable(id uuid.UUID) Stockable {
	return Stockable{Type: enums.StockableTypeProduct, ID: id}
}

// VariantStockable builds a Stockable for a product variant.
func VariantStockable(id uuid.UUID) Stockable {
	return Stockable{Type: enums.StockableTypeVariant, ID: id}
}

// Validate reports whether the stockable carries a known type and a non-nil id.
func (s Stockable) Validate() error {
	if !s.Type.IsValid() {
		return fmt.Errorf("invalid stockable type %q", s.Type)
	}
	if s.ID == uuid.Nil {
		return fmt.Errorf("stockable id required")
	}
	return nil
}

// String implements fmt.Stringer.
func (s Stockable) String() string {
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}
