package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/types"
)

// StockRecord is the authoritative on-hand quantity per stockable item.
// Quantity only changes through reservation conversion, release, or a
// recorded admin adjustment.
type StockRecord struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Stockable         types.Stockable `gorm:"embedded;embeddedPrefix:stockable_"`
	OnHandQty         int             `gorm:"column:on_hand_qty;not null;default:0"`
	ManageStock       bool            `gorm:"column:manage_stock;not null;default:true"`
	LowStockThreshold *int            `gorm:"column:low_stock_threshold"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
