package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/enums"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

// StockMovement is the append-only audit trail of every on-hand quantity change.
type StockMovement struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Stockable types.Stockable           `gorm:"embedded;embeddedPrefix:stockable_"`
	Delta     int                       `gorm:"column:delta;not null"`
	Reason    enums.StockMovementReason `gorm:"column:reason;type:text;not null"`
	OrderID   *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	CartID    *uuid.UUID                `gorm:"column:cart_id;type:uuid"`
	Note      *string                   `gorm:"column:note"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
