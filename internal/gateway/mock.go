package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
)

// Mock is a deterministic in-process gateway used in dev and tests. Outcomes
// are driven by the card number suffix:
//
//	ending 0000 -> declined
//	ending 9999 -> gateway unavailable
//	anything else -> approved
type Mock struct {
	mu       sync.Mutex
	statuses map[string]StatusResult
	amounts  map[string]int
	refunded map[string]int
}

// NewMock builds an empty mock gateway.
func NewMock() *Mock {
	return &Mock{
		statuses: make(map[string]StatusResult),
		amounts:  make(map[string]int),
		refunded: make(map[string]int),
	}
}

func (m *Mock) ProcessCard(ctx context.Context, charge CardCharge) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway call aborted")
	}
	digits := strings.ReplaceAll(charge.CardNumber, " ", "")
	if len(digits) < 4 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card number too short")
	}
	last4 := digits[len(digits)-4:]

	if last4 == "9999" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "gateway temporarily unavailable")
	}

	result := ChargeResult{
		TransactionID: "tx_" + uuid.NewString(),
		CardBrand:     brandFor(digits),
		CardLast4:     last4,
	}
	if last4 == "0000" {
		result.Status = enums.PaymentStatusDeclined
		result.FailureReason = "card declined by issuer"
	} else {
		result.Status = enums.PaymentStatusApproved
	}
	m.record(result.TransactionID, result.Status, result.FailureReason)
	m.recordAmount(result.TransactionID, charge.AmountCents)
	return &result, nil
}

func (m *Mock) GeneratePix(ctx context.Context, charge PixCharge) (*PixResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway call aborted")
	}
	id := "pix_" + uuid.NewString()
	expires := time.Now().Add(charge.ExpiresIn)
	m.record(id, enums.PaymentStatusPending, "")
	m.recordAmount(id, charge.AmountCents)
	return &PixResult{
		TransactionID: id,
		QRCode:        fmt.Sprintf("00020126qrcode%s", id),
		CopyPaste:     fmt.Sprintf("00020126%s5204000053039865802BR", id),
		ExpiresAt:     expires,
	}, nil
}

func (m *Mock) GenerateBankSlip(ctx context.Context, charge BankSlipCharge) (*BankSlipResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway call aborted")
	}
	id := "slip_" + uuid.NewString()
	m.record(id, enums.PaymentStatusPending, "")
	m.recordAmount(id, charge.AmountCents)
	return &BankSlipResult{
		TransactionID: id,
		URL:           "https://gateway.example/slips/" + id,
		DigitLine:     fmt.Sprintf("23790.00000 %05d.000000 00000.000000 1 00000000000000", charge.AmountCents%100000),
		DueDate:       charge.DueDate,
	}, nil
}

func (m *Mock) CheckPaymentStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway call aborted")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[transactionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown transaction")
	}
	return &status, nil
}

func (m *Mock) Refund(ctx context.Context, transactionID string, amountCents int) (*RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway call aborted")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[transactionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown transaction")
	}
	if status.Status != enums.PaymentStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeRefundNotEligible, "transaction is not settled")
	}
	if m.refunded[transactionID]+amountCents > m.amounts[transactionID] {
		return nil, pkgerrors.New(pkgerrors.CodeRefundNotEligible, "refund exceeds the captured amount")
	}
	m.refunded[transactionID] += amountCents
	if m.refunded[transactionID] >= m.amounts[transactionID] {
		m.statuses[transactionID] = StatusResult{TransactionID: transactionID, Status: enums.PaymentStatusRefunded}
	}
	return &RefundResult{TransactionID: transactionID, AmountCents: amountCents}, nil
}

// Settle flips a pending transaction's status, standing in for the asynchronous
// confirmation a real gateway delivers by webhook.
func (m *Mock) Settle(transactionID string, status enums.PaymentStatus) {
	m.record(transactionID, status, "")
}

func (m *Mock) record(id string, status enums.PaymentStatus, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = StatusResult{TransactionID: id, Status: status, FailureReason: reason}
}

func (m *Mock) recordAmount(id string, amountCents int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amounts[id] = amountCents
}

func brandFor(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case strings.HasPrefix(digits, "5"):
		return "mastercard"
	case strings.HasPrefix(digits, "3"):
		return "amex"
	default:
		return "card"
	}
}
