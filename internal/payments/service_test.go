package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
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

func TestCreateCardPaymentApprovesOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	applier := &recordingApplier{}
	audit := &recordingAudit{}
	svc := newTestService(t, db, gateway.NewMock(), applier, audit)
	order := seedOrder(t, db, 30000)
	ctx := context.Background()

	payment, err := svc.Create(ctx, CreateInput{
		OrderID:      order.ID,
		Method:       enums.PaymentMethodCreditCard,
		Installments: 6,
		Card:         &CardDetails{Number: "4111111111111234", Holder: "MARIA SILVA", ExpiryMonth: 12, ExpiryYear: 2030, CVV: "123"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if payment.Status != enums.PaymentStatusApproved {
		t.Fatalf("status = %s", payment.Status)
	}
	if payment.Installments != 6 || payment.InstallmentCents != 5628 || payment.AmountCents != 33765 {
		t.Fatalf("installment breakdown = %d x %d (total %d)", payment.Installments, payment.InstallmentCents, payment.AmountCents)
	}
	if payment.GatewayTxID == nil || payment.CardLast4 == nil || *payment.CardLast4 != "1234" {
		t.Fatalf("gateway metadata missing: %+v", payment)
	}
	if len(applier.paid) != 1 || applier.paid[0] != order.ID {
		t.Fatalf("order was not settled: %+v", applier.paid)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != enums.PaymentLogActionProcessCard {
		t.Fatalf("audit trail = %+v", audit.entries)
	}
}

func TestCreateCardPaymentSurfacesDecline(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	applier := &recordingApplier{}
	svc := newTestService(t, db, gateway.NewMock(), applier, &recordingAudit{})
	order := seedOrder(t, db, 10000)
	ctx := context.Background()

	payment, err := svc.Create(ctx, CreateInput{
		OrderID:      order.ID,
		Method:       enums.PaymentMethodCreditCard,
		Installments: 1,
		Card:         &CardDetails{Number: "5200000000000000", Holder: "JOAO SOUZA"},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeGatewayDeclined {
		t.Fatalf("expected decline, got %v", err)
	}
	if payment == nil || payment.Status != enums.PaymentStatusDeclined {
		t.Fatalf("declined attempt should still be stored: %+v", payment)
	}
	if payment.FailureReason == nil {
		t.Fatal("decline reason missing")
	}
	if len(applier.statuses) != 1 || applier.statuses[0].status != enums.PaymentStatusDeclined {
		t.Fatalf("order status not applied: %+v", applier.statuses)
	}

	// The declined attempt must not block a retry.
	var stored models.Payment
	if err := db.First(&stored, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load stored payment: %v", err)
	}
	if stored.Status != enums.PaymentStatusDeclined {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestCreatePixReusesLiveCharge(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, gateway.NewMock(), &recordingApplier{}, &recordingAudit{})
	order := seedOrder(t, db, 8000)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{OrderID: order.ID, Method: enums.PaymentMethodPix})
	if err != nil {
		t.Fatalf("first pix: %v", err)
	}
	if first.PixQRCode == nil || first.PixCopyPaste == nil || first.ExpiresAt == nil {
		t.Fatalf("pix payload incomplete: %+v", first)
	}

	second, err := svc.Create(ctx, CreateInput{OrderID: order.ID, Method: enums.PaymentMethodPix})
	if err != nil {
		t.Fatalf("second pix: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the live charge back, got %s and %s", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("payments = %d, want 1", count)
	}
}

func TestCreateRejectsSettledOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, gateway.NewMock(), &recordingApplier{}, &recordingAudit{})
	order := seedOrder(t, db, 5000)
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", enums.PaymentStatusApproved).Error; err != nil {
		t.Fatalf("settle order: %v", err)
	}

	_, err := svc.Create(context.Background(), CreateInput{OrderID: order.ID, Method: enums.PaymentMethodPix})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRefundEnforcesEligibility(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	mock := gateway.NewMock()
	applier := &recordingApplier{}
	svc := newTestService(t, db, mock, applier, &recordingAudit{})
	order := seedOrder(t, db, 10000)
	ctx := context.Background()

	payment, err := svc.Create(ctx, CreateInput{
		OrderID:      order.ID,
		Method:       enums.PaymentMethodCreditCard,
		Installments: 1,
		Card:         &CardDetails{Number: "4111111111111234", Holder: "MARIA SILVA"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Refund(ctx, payment.ID, 20000); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeRefundNotEligible {
		t.Fatalf("over-refund should be rejected, got %v", err)
	}

	partial, err := svc.Refund(ctx, payment.ID, 4000)
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if partial.RefundedAmountCents != 4000 || partial.Status != enums.PaymentStatusApproved {
		t.Fatalf("partial refund state = %+v", partial)
	}

	full, err := svc.Refund(ctx, payment.ID, 0)
	if err != nil {
		t.Fatalf("closing refund: %v", err)
	}
	if full.RefundedAmountCents != 10000 || full.Status != enums.PaymentStatusRefunded {
		t.Fatalf("closing refund state = %+v", full)
	}
	if len(applier.statuses) == 0 || applier.statuses[len(applier.statuses)-1].status != enums.PaymentStatusRefunded {
		t.Fatalf("order refund status not applied: %+v", applier.statuses)
	}
}

func TestApplyGatewayStatusIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	applier := &recordingApplier{}
	svc := newTestService(t, db, gateway.NewMock(), applier, &recordingAudit{})
	order := seedOrder(t, db, 6000)
	ctx := context.Background()

	payment, err := svc.Create(ctx, CreateInput{OrderID: order.ID, Method: enums.PaymentMethodPix})
	if err != nil {
		t.Fatalf("create pix: %v", err)
	}

	updated, err := svc.ApplyGatewayStatus(ctx, *payment.GatewayTxID, enums.PaymentStatusApproved, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated.Status != enums.PaymentStatusApproved {
		t.Fatalf("status = %s", updated.Status)
	}
	if len(applier.paid) != 1 {
		t.Fatalf("paid calls = %d", len(applier.paid))
	}

	// Replaying the webhook must not settle the order twice.
	if _, err := svc.ApplyGatewayStatus(ctx, *payment.GatewayTxID, enums.PaymentStatusApproved, ""); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(applier.paid) != 1 {
		t.Fatalf("paid calls after replay = %d", len(applier.paid))
	}
}

func TestPollPendingSettlesAndExpires(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	mock := gateway.NewMock()
	applier := &recordingApplier{}
	svc := newTestService(t, db, mock, applier, &recordingAudit{})
	ctx := context.Background()

	settling := seedOrder(t, db, 4000)
	settled, err := svc.Create(ctx, CreateInput{OrderID: settling.ID, Method: enums.PaymentMethodPix})
	if err != nil {
		t.Fatalf("create settling pix: %v", err)
	}
	mock.Settle(*settled.GatewayTxID, enums.PaymentStatusApproved)

	lapsing := seedOrder(t, db, 7000)
	lapsed, err := svc.Create(ctx, CreateInput{OrderID: lapsing.ID, Method: enums.PaymentMethodBankSlip})
	if err != nil {
		t.Fatalf("create lapsing slip: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := db.Model(&models.Payment{}).Where("id = ?", lapsed.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate slip: %v", err)
	}

	result, err := svc.PollPending(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if result.Settled != 1 || result.Expired != 1 || result.Failed != 0 {
		t.Fatalf("poll result = %+v", result)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, "id = ?", lapsed.ID).Error; err != nil {
		t.Fatalf("reload lapsed: %v", err)
	}
	if reloaded.Status != enums.PaymentStatusExpired {
		t.Fatalf("lapsed status = %s", reloaded.Status)
	}
}

type recordingApplier struct {
	paid     []uuid.UUID
	statuses []appliedStatus
}

type appliedStatus struct {
	orderID uuid.UUID
	status  enums.PaymentStatus
}

func (r *recordingApplier) MarkAsPaid(_ context.Context, orderID uuid.UUID) error {
	r.paid = append(r.paid, orderID)
	return nil
}

func (r *recordingApplier) ApplyPaymentStatus(_ context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	r.statuses = append(r.statuses, appliedStatus{orderID: orderID, status: status})
	return nil
}

type recordingAudit struct {
	entries []auditlog.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry auditlog.Entry) {
	r.entries = append(r.entries, entry)
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type noopOutbox struct{}

func (noopOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error { return nil }

func newTestService(t *testing.T, db *gorm.DB, adapter gateway.Adapter, applier *recordingApplier, audit *recordingAudit) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		orders.NewRepository(db),
		applier,
		adapter,
		audit,
		gormTxRunner{db: db},
		noopOutbox{},
		config.GatewayConfig{Timeout: 5 * time.Second, PixExpiry: 30 * time.Minute, BankSlipDueDays: 3},
		config.InstallmentsConfig{
			MinCount:                 1,
			MaxCount:                 12,
			InterestFreeCount:        3,
			MonthlyInterestRate:      0.0199,
			MinInstallmentValueCents: 500,
		},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, totalCents int) *models.Order {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260115-" + uuid.NewString()[:6],
		CartID:        uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		SubtotalCents: totalCents,
		TotalCents:    totalCents,
		PlacedAt:      time.Now(),
	}
	if err := db.Omit("Items").Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  cart_id TEXT NOT NULL UNIQUE,
  customer_id TEXT,
  access_token TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  subtotal_cents INTEGER NOT NULL,
  shipping_cost_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  tracking_number TEXT,
  placed_at DATETIME NOT NULL,
  paid_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  product_name TEXT NOT NULL,
  product_sku TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  sale_price_cents INTEGER,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  amount_cents INTEGER NOT NULL,
  installments INTEGER NOT NULL DEFAULT 1,
  installment_cents INTEGER NOT NULL DEFAULT 0,
  gateway_tx_id TEXT UNIQUE,
  card_brand TEXT,
  card_last4 TEXT,
  pix_qr_code TEXT,
  pix_copy_paste TEXT,
  bank_slip_url TEXT,
  bank_slip_digit_line TEXT,
  expires_at DATETIME,
  refunded_amount_cents INTEGER NOT NULL DEFAULT 0,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
