package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/outbox"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

func TestAdjustCreatesRecordAndMovement(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, 0)
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())

	availability, err := svc.Adjust(ctx, AdjustInput{Stockable: stockable, Delta: 10})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if availability.OnHandQty != 10 || availability.AvailableQty != 10 {
		t.Fatalf("unexpected availability: %+v", availability)
	}

	var movements []models.StockMovement
	if err := db.Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 || movements[0].Delta != 10 {
		t.Fatalf("expected one movement with delta 10, got %+v", movements)
	}
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, 0)
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())

	if _, err := svc.Adjust(ctx, AdjustInput{Stockable: stockable, Delta: 5}); err != nil {
		t.Fatalf("seed adjust: %v", err)
	}

	_, err := svc.Adjust(ctx, AdjustInput{Stockable: stockable, Delta: -6})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	// failed adjustment must not leave a movement behind
	var count int64
	if err := db.Model(&models.StockMovement{}).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the seed movement, got %d", count)
	}
}

func TestAdjustEmitsLowStockEvent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ob := &captureOutbox{}
	svc := newTestServiceWithOutbox(t, db, 0, ob)
	ctx := context.Background()
	stockable := types.VariantStockable(uuid.New())

	threshold := 3
	record := models.StockRecord{ID: uuid.New(), Stockable: stockable, OnHandQty: 5, ManageStock: true, LowStockThreshold: &threshold}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	if _, err := svc.Adjust(ctx, AdjustInput{Stockable: stockable, Delta: -3}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(ob.events) != 1 {
		t.Fatalf("expected one low stock event, got %d", len(ob.events))
	}
}

func TestGetAvailabilityUnmanagedStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, 0)
	ctx := context.Background()

	availability, err := svc.GetAvailability(ctx, types.ProductStockable(uuid.New()))
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	if availability.ManageStock {
		t.Fatalf("missing record should report unmanaged stock: %+v", availability)
	}
}

func TestGetAvailabilitySubtractsReservations(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, 4)
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())

	record := models.StockRecord{ID: uuid.New(), Stockable: stockable, OnHandQty: 10, ManageStock: true}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	availability, err := svc.GetAvailability(ctx, stockable)
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	if availability.ReservedQty != 4 || availability.AvailableQty != 6 {
		t.Fatalf("unexpected availability: %+v", availability)
	}
}

func TestListLowStockReturnsOnlyBreachedRecords(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, 0)
	ctx := context.Background()

	threshold := 5
	breached := models.StockRecord{
		ID:                uuid.New(),
		Stockable:         types.ProductStockable(uuid.New()),
		OnHandQty:         3,
		ManageStock:       true,
		LowStockThreshold: &threshold,
	}
	healthy := models.StockRecord{
		ID:                uuid.New(),
		Stockable:         types.ProductStockable(uuid.New()),
		OnHandQty:         50,
		ManageStock:       true,
		LowStockThreshold: &threshold,
	}
	untracked := models.StockRecord{
		ID:          uuid.New(),
		Stockable:   types.ProductStockable(uuid.New()),
		OnHandQty:   0,
		ManageStock: true,
	}
	for _, record := range []models.StockRecord{breached, healthy, untracked} {
		if err := db.Create(&record).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	records, err := svc.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one breached record, got %d", len(records))
	}
	if records[0].ID != breached.ID {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

type staticReservedCounter struct {
	reserved int
}

func (s staticReservedCounter) CountReserved(context.Context, types.Stockable, *uuid.UUID, time.Time) (int, error) {
	return s.reserved, nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type captureOutbox struct {
	events []outbox.DomainEvent
}

func (c *captureOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func newTestService(t *testing.T, db *gorm.DB, reserved int) Service {
	t.Helper()
	return newTestServiceWithOutbox(t, db, reserved, &captureOutbox{})
}

func newTestServiceWithOutbox(t *testing.T, db *gorm.DB, reserved int, ob outboxPublisher) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), staticReservedCounter{reserved: reserved}, gormTxRunner{db: db}, ob)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{`
CREATE TABLE IF NOT EXISTS stock_records (
  id TEXT PRIMARY KEY,
  stockable_type TEXT NOT NULL,
  stockable_id TEXT NOT NULL,
  on_hand_qty INTEGER NOT NULL DEFAULT 0,
  manage_stock INTEGER NOT NULL DEFAULT 1,
  low_stock_threshold INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS stock_movements (
  id TEXT PRIMARY KEY,
  stockable_type TEXT NOT NULL,
  stockable_id TEXT NOT NULL,
  delta INTEGER NOT NULL,
  reason TEXT NOT NULL,
  order_id TEXT,
  cart_id TEXT,
  note TEXT,
  created_at DATETIME
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}
