package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/pkg/enums"
)

// Order is created exactly once per converted cart. Monetary fields and the
// item snapshot are immutable after placement; only status and timestamp
// fields change afterwards.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex:uq_orders_order_number"`
	CartID            uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:uq_orders_cart_id"`
	CustomerID        *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	AccessToken       *string             `gorm:"column:access_token"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	SubtotalCents     int                 `gorm:"column:subtotal_cents;not null"`
	ShippingCostCents int                 `gorm:"column:shipping_cost_cents;not null;default:0"`
	DiscountCents     int                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents        int                 `gorm:"column:total_cents;not null"`
	TrackingNumber    *string             `gorm:"column:tracking_number"`
	PlacedAt          time.Time           `gorm:"column:placed_at;not null"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	ShippedAt         *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}
