package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/enums"
)

// PaymentLogEntry records one gateway interaction. Entries are append-only;
// payloads are sanitized before persistence and rows are only removed by the
// retention sweep.
type PaymentLogEntry struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID       *uuid.UUID             `gorm:"column:payment_id;type:uuid;index:idx_payment_log_payment_id"`
	OrderID         *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	Action          enums.PaymentLogAction `gorm:"column:action;type:text;not null"`
	Status          string                 `gorm:"column:status;not null"`
	RequestPayload  json.RawMessage        `gorm:"column:request_payload;type:jsonb"`
	ResponsePayload json.RawMessage        `gorm:"column:response_payload;type:jsonb"`
	ResponseTimeMs  int64                  `gorm:"column:response_time_ms;not null;default:0"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime;index:idx_payment_log_created_at"`
}
