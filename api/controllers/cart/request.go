package cart

import "github.com/google/uuid"

type createCartRequest struct {
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	SessionID  *string    `json:"session_id,omitempty"`
}

type addItemRequest struct {
	ProductID      uuid.UUID  `json:"product_id" validate:"required"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductName    string     `json:"product_name" validate:"required"`
	ProductSKU     string     `json:"product_sku" validate:"required"`
	Quantity       int        `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int        `json:"unit_price_cents" validate:"required,gt=0"`
	SalePriceCents *int       `json:"sale_price_cents,omitempty"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

type setDiscountRequest struct {
	DiscountCents int `json:"discount_cents" validate:"min=0"`
}
