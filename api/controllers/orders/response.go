package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
)

type orderView struct {
	ID                uuid.UUID       `json:"id"`
	OrderNumber       string          `json:"order_number"`
	CartID            uuid.UUID       `json:"cart_id"`
	CustomerID        *uuid.UUID      `json:"customer_id,omitempty"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	SubtotalCents     int             `json:"subtotal_cents"`
	ShippingCostCents int             `json:"shipping_cost_cents"`
	DiscountCents     int             `json:"discount_cents"`
	TotalCents        int             `json:"total_cents"`
	TrackingNumber    *string         `json:"tracking_number,omitempty"`
	PlacedAt          time.Time       `json:"placed_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	ShippedAt         *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
	Items             []orderItemView `json:"items"`
}

type orderItemView struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductName    string     `json:"product_name"`
	ProductSKU     string     `json:"product_sku"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	SalePriceCents *int       `json:"sale_price_cents,omitempty"`
	TotalCents     int        `json:"total_cents"`
}

// newOrderView renders an order for customers. The guest access token is
// issued once at checkout and never echoed back.
func newOrderView(order *models.Order) orderView {
	view := orderView{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		CartID:            order.CartID,
		CustomerID:        order.CustomerID,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		SubtotalCents:     order.SubtotalCents,
		ShippingCostCents: order.ShippingCostCents,
		DiscountCents:     order.DiscountCents,
		TotalCents:        order.TotalCents,
		TrackingNumber:    order.TrackingNumber,
		PlacedAt:          order.PlacedAt,
		PaidAt:            order.PaidAt,
		ShippedAt:         order.ShippedAt,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,
		Items:             make([]orderItemView, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SalePriceCents: item.SalePriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	return view
}
