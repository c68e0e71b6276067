package gateway

import (
	"context"
	"time"

	"github.com/brasilcart/storefront-backend/pkg/enums"
)

// CardCharge is one credit card authorization request. Number and CVV never
// leave this struct for persistence; the audit log stores a sanitized copy.
type CardCharge struct {
	OrderNumber  string
	AmountCents  int
	Installments int
	CardNumber   string
	CardHolder   string
	ExpiryMonth  int
	ExpiryYear   int
	CVV          string
}

// ChargeResult is the gateway's answer to a card authorization.
type ChargeResult struct {
	TransactionID string
	Status        enums.PaymentStatus
	CardBrand     string
	CardLast4     string
	FailureReason string
}

// PixCharge requests a Pix QR code for the order total.
type PixCharge struct {
	OrderNumber string
	AmountCents int
	ExpiresIn   time.Duration
}

// PixResult carries the rendered QR code and its copy-paste form.
type PixResult struct {
	TransactionID string
	QRCode        string
	CopyPaste     string
	ExpiresAt     time.Time
}

// BankSlipCharge requests a boleto for the order total.
type BankSlipCharge struct {
	OrderNumber string
	AmountCents int
	DueDate     time.Time
}

// BankSlipResult carries the printable slip and its digitable line.
type BankSlipResult struct {
	TransactionID string
	URL           string
	DigitLine     string
	DueDate       time.Time
}

// StatusResult is the gateway's current view of a transaction.
type StatusResult struct {
	TransactionID string
	Status        enums.PaymentStatus
	FailureReason string
}

// RefundResult reports how much the gateway returned.
type RefundResult struct {
	TransactionID string
	AmountCents   int
}

// Adapter is the payment gateway contract. Implementations must be safe for
// concurrent use; callers bound each call with a context deadline.
type Adapter interface {
	ProcessCard(ctx context.Context, charge CardCharge) (*ChargeResult, error)
	GeneratePix(ctx context.Context, charge PixCharge) (*PixResult, error)
	GenerateBankSlip(ctx context.Context, charge BankSlipCharge) (*BankSlipResult, error)
	CheckPaymentStatus(ctx context.Context, transactionID string) (*StatusResult, error)
	Refund(ctx context.Context, transactionID string, amountCents int) (*RefundResult, error)
}
