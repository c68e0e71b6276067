package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/internal/auditlog"
	"github.com/brasilcart/storefront-backend/internal/gateway"
	"github.com/brasilcart/storefront-backend/internal/orders"
	"github.com/brasilcart/storefront-backend/pkg/config"
	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderApplier is the slice of the order service payments drives.
type orderApplier interface {
	MarkAsPaid(ctx context.Context, orderID uuid.UUID) error
	ApplyPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry auditlog.Entry)
}

// CardDetails carries raw card input. It is passed to the gateway and the
// sanitizer; it must never be persisted or logged as-is.
type CardDetails struct {
	Number      string `json:"card_number"`
	Holder      string `json:"card_holder"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

// CreateInput describes one payment attempt against an order.
type CreateInput struct {
	OrderID      uuid.UUID
	Method       enums.PaymentMethod
	Installments int
	Card         *CardDetails
}

// PollResult summarizes one pending-payment sweep.
type PollResult struct {
	Checked int
	Settled int
	Expired int
	Failed  int
}

// RefundedEvent is emitted whenever refunded money moves.
type RefundedEvent struct {
	PaymentID      uuid.UUID `json:"payment_id"`
	OrderID        uuid.UUID `json:"order_id"`
	AmountCents    int       `json:"amount_cents"`
	RemainingCents int       `json:"remaining_cents"`
}

// Service orchestrates the payment lifecycle: charging, out-of-band
// settlement, and refunds.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	Options(ctx context.Context, orderID uuid.UUID) ([]InstallmentOption, error)

	// ApplyGatewayStatus moves a payment by gateway transaction id. It is
	// idempotent: replaying the current status is a no-op.
	ApplyGatewayStatus(ctx context.Context, gatewayTxID string, status enums.PaymentStatus, reason string) (*models.Payment, error)
	Refund(ctx context.Context, paymentID uuid.UUID, amountCents int) (*models.Payment, error)
	PollPending(ctx context.Context) (PollResult, error)
}

type service struct {
	repo           Repository
	orderRepo      orders.Repository
	orderSvc       orderApplier
	adapter        gateway.Adapter
	audit          auditRecorder
	tx             txRunner
	outbox         outboxPublisher
	gatewayCfg     config.GatewayConfig
	installmentCfg config.InstallmentsConfig
	now            func() time.Time
}

// NewService builds the payment service with the required dependencies.
func NewService(
	repo Repository,
	orderRepo orders.Repository,
	orderSvc orderApplier,
	adapter gateway.Adapter,
	audit auditRecorder,
	tx txRunner,
	ob outboxPublisher,
	gatewayCfg config.GatewayConfig,
	installmentCfg config.InstallmentsConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order applier required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("gateway adapter required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:           repo,
		orderRepo:      orderRepo,
		orderSvc:       orderSvc,
		adapter:        adapter,
		audit:          audit,
		tx:             tx,
		outbox:         ob,
		gatewayCfg:     gatewayCfg,
		installmentCfg: installmentCfg,
		now:            time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Payment, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	order, err := s.loadPayableOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	// Reuse a live pix or bank slip instead of issuing a second charge for
	// the same order.
	if input.Method != enums.PaymentMethodCreditCard {
		if existing, err := s.findReusablePending(ctx, order.ID, input.Method); err != nil {
			return nil, err
		} else if existing != nil {
			return existing, nil
		}
	}

	switch input.Method {
	case enums.PaymentMethodCreditCard:
		return s.chargeCard(ctx, order, input)
	case enums.PaymentMethodPix:
		return s.chargePix(ctx, order)
	case enums.PaymentMethodBankSlip:
		return s.chargeBankSlip(ctx, order)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
}

func (s *service) validateCreate(input CreateInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if input.Method == enums.PaymentMethodCreditCard {
		if input.Card == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "card details are required")
		}
		if strings.TrimSpace(input.Card.Number) == "" || strings.TrimSpace(input.Card.Holder) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "card number and holder are required")
		}
		if input.Installments < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "installments must be at least 1")
		}
	} else if input.Installments > 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "installments are only available on credit card")
	}
	return nil
}

func (s *service) loadPayableOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot be paid")
	}
	switch order.PaymentStatus {
	case enums.PaymentStatusApproved, enums.PaymentStatusRefunded:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already settled")
	}
	return order, nil
}

func (s *service) findReusablePending(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod) (*models.Payment, error) {
	existing, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list payments")
	}
	now := s.now()
	for i := range existing {
		p := &existing[i]
		if p.Method != method || p.Status != enums.PaymentStatusPending {
			continue
		}
		if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			continue
		}
		return p, nil
	}
	return nil, nil
}

func (s *service) chargeCard(ctx context.Context, order *models.Order, input CreateInput) (*models.Payment, error) {
	option, err := QuoteInstallments(order.TotalCents, input.Installments, s.installmentCfg)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:          order.ID,
		Method:           enums.PaymentMethodCreditCard,
		Status:           enums.PaymentStatusPending,
		AmountCents:      option.TotalCents,
		Installments:     option.Count,
		InstallmentCents: option.InstallmentCents,
	}
	if _, err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create payment")
	}

	charge := gateway.CardCharge{
		OrderNumber:  order.OrderNumber,
		AmountCents:  option.TotalCents,
		Installments: option.Count,
		CardNumber:   input.Card.Number,
		CardHolder:   input.Card.Holder,
		ExpiryMonth:  input.Card.ExpiryMonth,
		ExpiryYear:   input.Card.ExpiryYear,
		CVV:          input.Card.CVV,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayCfg.Timeout)
	defer cancel()
	started := s.now()
	result, gwErr := s.adapter.ProcessCard(callCtx, charge)
	elapsed := s.now().Sub(started)

	entry := auditlog.Entry{
		PaymentID:    &payment.ID,
		OrderID:      &order.ID,
		Action:       enums.PaymentLogActionProcessCard,
		Request:      charge,
		ResponseTime: elapsed,
	}
	if gwErr != nil {
		entry.Status = "error"
		entry.Response = map[string]string{"error": gwErr.Error()}
		s.audit.Record(ctx, entry)

		payment.Status = enums.PaymentStatusFailed
		reason := gwErr.Error()
		payment.FailureReason = &reason
		if err := s.repo.Save(ctx, payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record gateway failure")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, gwErr, "card charge failed")
	}
	entry.Status = string(result.Status)
	entry.Response = result
	s.audit.Record(ctx, entry)

	payment.Status = result.Status
	payment.GatewayTxID = &result.TransactionID
	if result.CardBrand != "" {
		payment.CardBrand = &result.CardBrand
	}
	if result.CardLast4 != "" {
		payment.CardLast4 = &result.CardLast4
	}
	if result.FailureReason != "" {
		payment.FailureReason = &result.FailureReason
	}
	if err := s.repo.Save(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store charge result")
	}

	if err := s.applyToOrder(ctx, payment, result.Status); err != nil {
		return nil, err
	}
	if result.Status == enums.PaymentStatusDeclined {
		return payment, pkgerrors.New(pkgerrors.CodeGatewayDeclined, "card was declined").
			WithDetails(map[string]any{"payment_id": payment.ID, "reason": result.FailureReason})
	}
	return payment, nil
}

func (s *service) chargePix(ctx context.Context, order *models.Order) (*models.Payment, error) {
	payment := &models.Payment{
		OrderID:      order.ID,
		Method:       enums.PaymentMethodPix,
		Status:       enums.PaymentStatusPending,
		AmountCents:  order.TotalCents,
		Installments: 1,
	}
	if _, err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create payment")
	}

	charge := gateway.PixCharge{
		OrderNumber: order.OrderNumber,
		AmountCents: order.TotalCents,
		ExpiresIn:   s.gatewayCfg.PixExpiry,
	}
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayCfg.Timeout)
	defer cancel()
	started := s.now()
	result, gwErr := s.adapter.GeneratePix(callCtx, charge)
	elapsed := s.now().Sub(started)

	entry := auditlog.Entry{
		PaymentID:    &payment.ID,
		OrderID:      &order.ID,
		Action:       enums.PaymentLogActionGeneratePix,
		Request:      charge,
		ResponseTime: elapsed,
	}
	if gwErr != nil {
		entry.Status = "error"
		entry.Response = map[string]string{"error": gwErr.Error()}
		s.audit.Record(ctx, entry)
		return nil, s.failPayment(ctx, payment, gwErr, "pix generation failed")
	}
	entry.Status = string(enums.PaymentStatusPending)
	entry.Response = result
	s.audit.Record(ctx, entry)

	payment.GatewayTxID = &result.TransactionID
	payment.PixQRCode = &result.QRCode
	payment.PixCopyPaste = &result.CopyPaste
	expiresAt := result.ExpiresAt
	payment.ExpiresAt = &expiresAt
	if err := s.repo.Save(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store pix charge")
	}
	return payment, nil
}

func (s *service) chargeBankSlip(ctx context.Context, order *models.Order) (*models.Payment, error) {
	payment := &models.Payment{
		OrderID:      order.ID,
		Method:       enums.PaymentMethodBankSlip,
		Status:       enums.PaymentStatusPending,
		AmountCents:  order.TotalCents,
		Installments: 1,
	}
	if _, err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create payment")
	}

	dueDays := s.gatewayCfg.BankSlipDueDays
	if dueDays <= 0 {
		dueDays = 3
	}
	charge := gateway.BankSlipCharge{
		OrderNumber: order.OrderNumber,
		AmountCents: order.TotalCents,
		DueDate:     s.now().AddDate(0, 0, dueDays),
	}
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayCfg.Timeout)
	defer cancel()
	started := s.now()
	result, gwErr := s.adapter.GenerateBankSlip(callCtx, charge)
	elapsed := s.now().Sub(started)

	entry := auditlog.Entry{
		PaymentID:    &payment.ID,
		OrderID:      &order.ID,
		Action:       enums.PaymentLogActionGenerateBankSlip,
		Request:      charge,
		ResponseTime: elapsed,
	}
	if gwErr != nil {
		entry.Status = "error"
		entry.Response = map[string]string{"error": gwErr.Error()}
		s.audit.Record(ctx, entry)
		return nil, s.failPayment(ctx, payment, gwErr, "bank slip generation failed")
	}
	entry.Status = string(enums.PaymentStatusPending)
	entry.Response = result
	s.audit.Record(ctx, entry)

	payment.GatewayTxID = &result.TransactionID
	payment.BankSlipURL = &result.URL
	payment.BankSlipDigitLine = &result.DigitLine
	dueDate := result.DueDate
	payment.ExpiresAt = &dueDate
	if err := s.repo.Save(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store bank slip charge")
	}
	return payment, nil
}

func (s *service) failPayment(ctx context.Context, payment *models.Payment, cause error, message string) error {
	payment.Status = enums.PaymentStatusFailed
	reason := cause.Error()
	payment.FailureReason = &reason
	if err := s.repo.Save(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record gateway failure")
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, cause, message)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load payment")
	}
	return payment, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	list, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list payments")
	}
	return list, nil
}

// Options quotes every installment split the order's total supports.
func (s *service) Options(ctx context.Context, orderID uuid.UUID) ([]InstallmentOption, error) {
	order, err := s.loadPayableOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return InstallmentOptions(order.TotalCents, s.installmentCfg), nil
}

func (s *service) ApplyGatewayStatus(ctx context.Context, gatewayTxID string, status enums.PaymentStatus, reason string) (*models.Payment, error) {
	if strings.TrimSpace(gatewayTxID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway transaction id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status")
	}

	payment, err := s.repo.FindByGatewayTxID(ctx, gatewayTxID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for gateway transaction").
				WithDetails(map[string]string{"gateway_tx_id": gatewayTxID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load payment")
	}
	if payment.Status == status {
		return payment, nil
	}
	if !orders.CanTransitionPayment(payment.Status, status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment status transition not allowed").
			WithDetails(map[string]any{"from": payment.Status, "to": status})
	}

	payment.Status = status
	if reason != "" {
		payment.FailureReason = &reason
	}
	if err := s.repo.Save(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update payment")
	}
	if err := s.applyToOrder(ctx, payment, status); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) Refund(ctx context.Context, paymentID uuid.UUID, amountCents int) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if amountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}

	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeRefundNotEligible, "only approved payments can be refunded").
			WithDetails(map[string]any{"status": payment.Status})
	}
	if payment.GatewayTxID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeRefundNotEligible, "payment has no gateway transaction")
	}
	remaining := payment.AmountCents - payment.RefundedAmountCents
	if amountCents == 0 {
		amountCents = remaining
	}
	if amountCents > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeRefundNotEligible, "refund exceeds the refundable balance").
			WithDetails(map[string]any{"requested_cents": amountCents, "remaining_cents": remaining})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayCfg.Timeout)
	defer cancel()
	started := s.now()
	result, gwErr := s.adapter.Refund(callCtx, *payment.GatewayTxID, amountCents)
	elapsed := s.now().Sub(started)

	entry := auditlog.Entry{
		PaymentID:    &payment.ID,
		OrderID:      &payment.OrderID,
		Action:       enums.PaymentLogActionRefund,
		Request:      map[string]any{"gateway_tx_id": *payment.GatewayTxID, "amount_cents": amountCents},
		ResponseTime: elapsed,
	}
	if gwErr != nil {
		entry.Status = "error"
		entry.Response = map[string]string{"error": gwErr.Error()}
		s.audit.Record(ctx, entry)
		if typed := pkgerrors.As(gwErr); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, gwErr, "refund failed")
	}
	entry.Status = "refunded"
	entry.Response = result
	s.audit.Record(ctx, entry)

	payment.RefundedAmountCents += result.AmountCents
	fullyRefunded := payment.RefundedAmountCents >= payment.AmountCents
	if fullyRefunded {
		payment.Status = enums.PaymentStatusRefunded
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update payment")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: RefundedEvent{
				PaymentID:      payment.ID,
				OrderID:        payment.OrderID,
				AmountCents:    result.AmountCents,
				RemainingCents: payment.AmountCents - payment.RefundedAmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if fullyRefunded {
		if err := s.orderSvc.ApplyPaymentStatus(ctx, payment.OrderID, enums.PaymentStatusRefunded); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

// PollPending reconciles pix and bank slip payments that settle out of band.
// Expired charges are closed locally; the rest are checked against the
// gateway, with transient gateway outages retried with backoff.
func (s *service) PollPending(ctx context.Context) (PollResult, error) {
	var result PollResult

	pending, err := s.repo.ListPendingExternal(ctx, 0)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list pending payments")
	}

	now := s.now()
	for i := range pending {
		payment := &pending[i]

		if payment.ExpiresAt != nil && payment.ExpiresAt.Before(now) {
			if _, err := s.ApplyGatewayStatus(ctx, *payment.GatewayTxID, enums.PaymentStatusExpired, "charge expired before settlement"); err != nil {
				result.Failed++
				continue
			}
			result.Expired++
			continue
		}

		result.Checked++
		status, err := s.checkWithRetry(ctx, *payment.GatewayTxID)
		if err != nil {
			result.Failed++
			continue
		}
		if status.Status == payment.Status {
			continue
		}
		if _, err := s.ApplyGatewayStatus(ctx, *payment.GatewayTxID, status.Status, status.FailureReason); err != nil {
			result.Failed++
			continue
		}
		if status.Status == enums.PaymentStatusApproved {
			result.Settled++
		}
	}
	return result, nil
}

func (s *service) checkWithRetry(ctx context.Context, gatewayTxID string) (*gateway.StatusResult, error) {
	var status *gateway.StatusResult
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.gatewayCfg.Timeout)
		defer cancel()

		started := s.now()
		result, err := s.adapter.CheckPaymentStatus(callCtx, gatewayTxID)
		elapsed := s.now().Sub(started)

		entry := auditlog.Entry{
			Action:       enums.PaymentLogActionCheckStatus,
			Request:      map[string]string{"gateway_tx_id": gatewayTxID},
			ResponseTime: elapsed,
		}
		if err != nil {
			entry.Status = "error"
			entry.Response = map[string]string{"error": err.Error()}
			s.audit.Record(ctx, entry)
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeGatewayUnavailable {
				return retry.RetryableError(err)
			}
			return err
		}
		entry.Status = string(result.Status)
		entry.Response = result
		s.audit.Record(ctx, entry)
		status = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *service) applyToOrder(ctx context.Context, payment *models.Payment, status enums.PaymentStatus) error {
	switch status {
	case enums.PaymentStatusApproved:
		return s.orderSvc.MarkAsPaid(ctx, payment.OrderID)
	case enums.PaymentStatusDeclined, enums.PaymentStatusFailed, enums.PaymentStatusExpired, enums.PaymentStatusRefunded:
		return s.orderSvc.ApplyPaymentStatus(ctx, payment.OrderID, status)
	default:
		return nil
	}
}
