package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/enums"
)

// Payment is one attempt to settle an order. An order may accumulate several
// attempts (for example a retry after a decline).
type Payment struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index:idx_payments_order_id"`
	Method              enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status              enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AmountCents         int                 `gorm:"column:amount_cents;not null"`
	Installments        int                 `gorm:"column:installments;not null;default:1"`
	InstallmentCents    int                 `gorm:"column:installment_cents;not null;default:0"`
	GatewayTxID         *string             `gorm:"column:gateway_tx_id;uniqueIndex:uq_payments_gateway_tx_id"`
	CardBrand           *string             `gorm:"column:card_brand"`
	CardLast4           *string             `gorm:"column:card_last4"`
	PixQRCode           *string             `gorm:"column:pix_qr_code"`
	PixCopyPaste        *string             `gorm:"column:pix_copy_paste"`
	BankSlipURL         *string             `gorm:"column:bank_slip_url"`
	BankSlipDigitLine   *string             `gorm:"column:bank_slip_digit_line"`
	ExpiresAt           *time.Time          `gorm:"column:expires_at"`
	RefundedAmountCents int                 `gorm:"column:refunded_amount_cents;not null;default:0"`
	FailureReason       *string             `gorm:"column:failure_reason"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
