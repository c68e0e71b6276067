package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
)

// paymentView exposes a payment attempt. Card data is reduced to brand and
// last four digits before it ever reaches storage, so nothing sensitive can
// leak from here.
type paymentView struct {
	ID                  uuid.UUID  `json:"id"`
	OrderID             uuid.UUID  `json:"order_id"`
	Method              string     `json:"method"`
	Status              string     `json:"status"`
	AmountCents         int        `json:"amount_cents"`
	Installments        int        `json:"installments"`
	InstallmentCents    int        `json:"installment_cents"`
	CardBrand           *string    `json:"card_brand,omitempty"`
	CardLast4           *string    `json:"card_last4,omitempty"`
	PixQRCode           *string    `json:"pix_qr_code,omitempty"`
	PixCopyPaste        *string    `json:"pix_copy_paste,omitempty"`
	BankSlipURL         *string    `json:"bank_slip_url,omitempty"`
	BankSlipDigitLine   *string    `json:"bank_slip_digit_line,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	RefundedAmountCents int        `json:"refunded_amount_cents"`
	FailureReason       *string    `json:"failure_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func newPaymentView(payment *models.Payment) paymentView {
	return paymentView{
		ID:                  payment.ID,
		OrderID:             payment.OrderID,
		Method:              string(payment.Method),
		Status:              string(payment.Status),
		AmountCents:         payment.AmountCents,
		Installments:        payment.Installments,
		InstallmentCents:    payment.InstallmentCents,
		CardBrand:           payment.CardBrand,
		CardLast4:           payment.CardLast4,
		PixQRCode:           payment.PixQRCode,
		PixCopyPaste:        payment.PixCopyPaste,
		BankSlipURL:         payment.BankSlipURL,
		BankSlipDigitLine:   payment.BankSlipDigitLine,
		ExpiresAt:           payment.ExpiresAt,
		RefundedAmountCents: payment.RefundedAmountCents,
		FailureReason:       payment.FailureReason,
		CreatedAt:           payment.CreatedAt,
	}
}
