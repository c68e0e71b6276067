package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/internal/inventory"
	"github.com/brasilcart/storefront-backend/pkg/config"
	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/outbox"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

func TestReservePreventsOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())
	seedStock(t, db, stockable, 5)

	cartA := uuid.New()
	cartB := uuid.New()

	results, err := svc.Reserve(ctx, cartA, []Request{{Stockable: stockable, Quantity: 3}})
	if err != nil {
		t.Fatalf("reserve cart a: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("expected cart a hold to succeed: %+v", results[0])
	}

	// only 2 units remain for other carts
	results, err = svc.Reserve(ctx, cartB, []Request{{Stockable: stockable, Quantity: 4}})
	if err != nil {
		t.Fatalf("reserve cart b: %v", err)
	}
	if results[0].Reserved {
		t.Fatalf("expected cart b hold to fail: %+v", results[0])
	}
	if results[0].Reason == "" || results[0].AvailableQty != 2 {
		t.Fatalf("expected reason and available 2, got %+v", results[0])
	}

	results, err = svc.Reserve(ctx, cartB, []Request{{Stockable: stockable, Quantity: 2}})
	if err != nil {
		t.Fatalf("reserve cart b retry: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("expected cart b retry to succeed: %+v", results[0])
	}
}

func TestReserveReplacesExistingHold(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())
	seedStock(t, db, stockable, 5)
	cartID := uuid.New()

	if _, err := svc.Reserve(ctx, cartID, []Request{{Stockable: stockable, Quantity: 3}}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	// a cart's own hold never counts against itself, so 3 -> 5 fits
	results, err := svc.Reserve(ctx, cartID, []Request{{Stockable: stockable, Quantity: 5}})
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("expected replacement hold to succeed: %+v", results[0])
	}

	var count int64
	if err := db.Model(&models.Reservation{}).Where("cart_id = ?", cartID).Count(&count).Error; err != nil {
		t.Fatalf("count holds: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one hold row, got %d", count)
	}
	var hold models.Reservation
	if err := db.First(&hold, "cart_id = ?", cartID).Error; err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if hold.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", hold.Quantity)
	}
}

func TestReserveIgnoresExpiredHolds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())
	seedStock(t, db, stockable, 3)

	lapsed := models.Reservation{
		ID:        uuid.New(),
		Stockable: stockable,
		CartID:    uuid.New(),
		Quantity:  3,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := db.Create(&lapsed).Error; err != nil {
		t.Fatalf("seed expired hold: %v", err)
	}

	results, err := svc.Reserve(ctx, uuid.New(), []Request{{Stockable: stockable, Quantity: 3}})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("expired hold must not block new carts: %+v", results[0])
	}
}

func TestReserveUntrackedStockAlwaysSucceeds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})
	ctx := context.Background()

	results, err := svc.Reserve(ctx, uuid.New(), []Request{
		{Stockable: types.ProductStockable(uuid.New()), Quantity: 99},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("untracked stock should always reserve: %+v", results[0])
	}

	var count int64
	if err := db.Model(&models.Reservation{}).Count(&count).Error; err != nil {
		t.Fatalf("count holds: %v", err)
	}
	if count != 0 {
		t.Fatalf("untracked stock should not create hold rows, got %d", count)
	}
}

func TestReserveRejectsInvalidQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})

	_, err := svc.Reserve(context.Background(), uuid.New(), []Request{
		{Stockable: types.ProductStockable(uuid.New()), Quantity: 0},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConvertDecrementsStockAndKeepsAudit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())
	seedStock(t, db, stockable, 10)
	cartID := uuid.New()
	orderID := uuid.New()

	if _, err := svc.Reserve(ctx, cartID, []Request{{Stockable: stockable, Quantity: 4}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Convert(ctx, tx, cartID, orderID)
	}); err != nil {
		t.Fatalf("convert: %v", err)
	}

	var record models.StockRecord
	if err := db.First(&record, "stockable_id = ?", stockable.ID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if record.OnHandQty != 6 {
		t.Fatalf("expected on-hand 6 after conversion, got %d", record.OnHandQty)
	}

	var hold models.Reservation
	if err := db.First(&hold, "cart_id = ?", cartID).Error; err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if hold.ConvertedAt == nil {
		t.Fatalf("expected converted_at stamp: %+v", hold)
	}

	var movement models.StockMovement
	if err := db.First(&movement, "order_id = ?", orderID).Error; err != nil {
		t.Fatalf("load movement: %v", err)
	}
	if movement.Delta != -4 || movement.Reason != enums.StockMovementReasonConversion {
		t.Fatalf("unexpected movement: %+v", movement)
	}

	// a converted hold no longer counts against availability
	results, err := svc.Reserve(ctx, uuid.New(), []Request{{Stockable: stockable, Quantity: 6}})
	if err != nil {
		t.Fatalf("reserve after convert: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("expected full remaining stock to be available: %+v", results[0])
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())
	seedStock(t, db, stockable, 5)
	cartID := uuid.New()

	if _, err := svc.Reserve(ctx, cartID, []Request{{Stockable: stockable, Quantity: 2}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, cartID, stockable); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.Release(ctx, cartID, stockable); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}

	var count int64
	if err := db.Model(&models.Reservation{}).Where("cart_id = ?", cartID).Count(&count).Error; err != nil {
		t.Fatalf("count holds: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no holds after release, got %d", count)
	}
}

func TestSweepExpiredRemovesOnlyLapsedHolds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, ob := newTestService(t, db, config.ReservationConfig{TTLMinutes: 30})
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())
	seedStock(t, db, stockable, 10)

	liveCart := uuid.New()
	if _, err := svc.Reserve(ctx, liveCart, []Request{{Stockable: stockable, Quantity: 1}}); err != nil {
		t.Fatalf("reserve live: %v", err)
	}

	convertedAt := time.Now().Add(-time.Hour)
	seed := []models.Reservation{
		{ID: uuid.New(), Stockable: stockable, CartID: uuid.New(), Quantity: 2, ExpiresAt: time.Now().Add(-time.Minute)},
		{ID: uuid.New(), Stockable: stockable, CartID: uuid.New(), Quantity: 3, ExpiresAt: time.Now().Add(-time.Hour)},
		{ID: uuid.New(), Stockable: stockable, CartID: uuid.New(), Quantity: 1, ExpiresAt: convertedAt, ConvertedAt: &convertedAt},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed hold: %v", err)
		}
	}

	removed, err := svc.SweepExpired(ctx, 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if len(ob.events) != 2 {
		t.Fatalf("expected 2 expiry events, got %d", len(ob.events))
	}

	var remaining int64
	if err := db.Model(&models.Reservation{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count holds: %v", err)
	}
	// the live hold and the converted audit row survive
	if remaining != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", remaining)
	}
}

func TestSweepKeepsHoldConvertedMidSweep(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())

	hold := models.Reservation{
		ID:        uuid.New(),
		Stockable: stockable,
		CartID:    uuid.New(),
		Quantity:  2,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := db.Create(&hold).Error; err != nil {
		t.Fatalf("seed hold: %v", err)
	}

	listed, err := repo.ListExpired(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 expired hold, got %d", len(listed))
	}

	// a checkout converts the hold after the sweeper's scan
	if err := repo.MarkConverted(ctx, []uuid.UUID{hold.ID}, time.Now()); err != nil {
		t.Fatalf("mark converted: %v", err)
	}

	deleted, err := repo.DeleteUnconverted(ctx, []uuid.UUID{listed[0].ID})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("converted hold must survive the sweep, deleted %d", deleted)
	}

	var survivor models.Reservation
	if err := db.First(&survivor, "id = ?", hold.ID).Error; err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if survivor.ConvertedAt == nil {
		t.Fatalf("conversion stamp lost: %+v", survivor)
	}
}

func TestReserveLastUnitHasSingleWinner(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	// sqlite has no FOR UPDATE; the runner serializes transactions the way
	// the production row lock does
	runner := &lockingTxRunner{db: db}
	ob := &captureOutbox{}
	svc, err := NewService(NewRepository(db), inventory.NewRepository(db), runner, ob, config.ReservationConfig{TTLMinutes: 30})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	ctx := context.Background()
	stockable := types.ProductStockable(uuid.New())
	seedStock(t, db, stockable, 1)

	start := make(chan struct{})
	var wg sync.WaitGroup
	var reserved [2]bool
	var errs [2]error
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results, err := svc.Reserve(ctx, uuid.New(), []Request{{Stockable: stockable, Quantity: 1}})
			if err != nil {
				errs[i] = err
				return
			}
			reserved[i] = results[0].Reserved
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	wins := 0
	for _, ok := range reserved {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner for the last unit, got %d (%v)", wins, reserved)
	}
}

type lockingTxRunner struct {
	mu sync.Mutex
	db *gorm.DB
}

func (r *lockingTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.WithContext(ctx).Transaction(fn)
}

type captureOutbox struct {
	events []outbox.DomainEvent
}

func (c *captureOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB, cfg config.ReservationConfig) (Service, *captureOutbox) {
	t.Helper()
	ob := &captureOutbox{}
	svc, err := NewService(NewRepository(db), inventory.NewRepository(db), gormTxRunner{db: db}, ob, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, ob
}

func seedStock(t *testing.T, db *gorm.DB, stockable types.Stockable, onHand int) {
	t.Helper()
	record := models.StockRecord{ID: uuid.New(), Stockable: stockable, OnHandQty: onHand, ManageStock: true}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservation_" + uuid.NewString() + "?mode=memory&cache=shared"
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
);`, `
CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  stockable_type TEXT NOT NULL,
  stockable_id TEXT NOT NULL,
  cart_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  expires_at DATETIME NOT NULL,
  converted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}
