package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
)

type cartView struct {
	ID            uuid.UUID      `json:"id"`
	CustomerID    *uuid.UUID     `json:"customer_id,omitempty"`
	SessionID     *string        `json:"session_id,omitempty"`
	Status        string         `json:"status"`
	SubtotalCents int            `json:"subtotal_cents"`
	DiscountCents int            `json:"discount_cents"`
	TotalCents    int            `json:"total_cents"`
	Items         []cartItemView `json:"items"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type cartItemView struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductName    string     `json:"product_name"`
	ProductSKU     string     `json:"product_sku"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	SalePriceCents *int       `json:"sale_price_cents,omitempty"`
	LineTotalCents int        `json:"line_total_cents"`
}

func newCartView(record *models.CartRecord) cartView {
	view := cartView{
		ID:            record.ID,
		CustomerID:    record.CustomerID,
		SessionID:     record.SessionID,
		Status:        string(record.Status),
		SubtotalCents: record.SubtotalCents,
		DiscountCents: record.DiscountCents,
		TotalCents:    record.TotalCents,
		Items:         make([]cartItemView, 0, len(record.Items)),
		UpdatedAt:     record.UpdatedAt,
	}
	for _, item := range record.Items {
		view.Items = append(view.Items, cartItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SalePriceCents: item.SalePriceCents,
			LineTotalCents: item.LineTotalCents(),
		})
	}
	return view
}
