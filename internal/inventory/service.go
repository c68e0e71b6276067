package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/outbox"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ReservedCounter reports how many units are held by live reservations.
type ReservedCounter interface {
	CountReserved(ctx context.Context, stockable types.Stockable, excludeCartID *uuid.UUID, now time.Time) (int, error)
}

// Availability is the derived stock view exposed to readers.
type Availability struct {
	Stockable   types.Stockable `json:"stockable"`
	ManageStock bool            `json:"manage_stock"`
	OnHandQty   int             `json:"on_hand_qty"`
	ReservedQty int             `json:"reserved_qty"`
	// AvailableQty is on-hand minus live reservations. Unmanaged stock
	// reports zero counts and is always purchasable.
	AvailableQty int `json:"available_qty"`
}

// AdjustInput captures an admin stock correction.
type AdjustInput struct {
	Stockable types.Stockable
	Delta     int
	Note      *string
}

// StockBelowThresholdEvent is emitted when an adjustment drops on-hand to or
// below the configured threshold.
type StockBelowThresholdEvent struct {
	Stockable types.Stockable `json:"stockable"`
	OnHandQty int             `json:"on_hand_qty"`
	Threshold int             `json:"threshold"`
}

// Service defines inventory operations beyond repository reads.
type Service interface {
	GetAvailability(ctx context.Context, stockable types.Stockable) (*Availability, error)
	Adjust(ctx context.Context, input AdjustInput) (*Availability, error)
	ListMovements(ctx context.Context, stockable types.Stockable, limit int) ([]models.StockMovement, error)
	ListLowStock(ctx context.Context) ([]models.StockRecord, error)
}

type service struct {
	repo     Repository
	reserved ReservedCounter
	tx       txRunner
	outbox   outboxPublisher
}

// NewService builds an inventory service with the required dependencies.
func NewService(repo Repository, reserved ReservedCounter, tx txRunner, ob outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if reserved == nil {
		return nil, fmt.Errorf("reserved counter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, reserved: reserved, tx: tx, outbox: ob}, nil
}

func (s *service) GetAvailability(ctx context.Context, stockable types.Stockable) (*Availability, error) {
	if err := stockable.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stockable")
	}

	record, err := s.repo.FindStock(ctx, stockable)
	if err != nil {
		if IsNotFound(err) {
			// no record means the item does not track stock
			return &Availability{Stockable: stockable, ManageStock: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	if !record.ManageStock {
		return &Availability{Stockable: stockable, ManageStock: false}, nil
	}

	reserved, err := s.reserved.CountReserved(ctx, stockable, nil, time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reservations")
	}

	return &Availability{
		Stockable:    stockable,
		ManageStock:  true,
		OnHandQty:    record.OnHandQty,
		ReservedQty:  reserved,
		AvailableQty: record.OnHandQty - reserved,
	}, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*Availability, error) {
	if err := input.Stockable.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stockable")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	var out *Availability
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindStockForUpdate(ctx, input.Stockable)
		if err != nil {
			if !IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
			}
			record, err = repo.CreateStock(ctx, &models.StockRecord{
				Stockable:   input.Stockable,
				OnHandQty:   0,
				ManageStock: true,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock record")
			}
		}

		newQty := record.OnHandQty + input.Delta
		if newQty < 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would drive stock negative").
				WithDetails(map[string]any{
					"on_hand":   record.OnHandQty,
					"requested": input.Delta,
				})
		}

		if err := repo.AddOnHand(ctx, record.ID, input.Delta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock adjustment")
		}
		movement := models.StockMovement{
			Stockable: input.Stockable,
			Delta:     input.Delta,
			Reason:    enums.StockMovementReasonAdjustment,
			Note:      input.Note,
		}
		if err := repo.RecordMovement(ctx, &movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
		}

		if record.LowStockThreshold != nil && newQty <= *record.LowStockThreshold {
			event := outbox.DomainEvent{
				EventType:     enums.EventStockBelowThreshold,
				AggregateType: enums.AggregateStock,
				AggregateID:   record.ID,
				Data: StockBelowThresholdEvent{
					Stockable: input.Stockable,
					OnHandQty: newQty,
					Threshold: *record.LowStockThreshold,
				},
				Version: 1,
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit low stock event")
			}
		}

		out = &Availability{
			Stockable:   input.Stockable,
			ManageStock: record.ManageStock,
			OnHandQty:   newQty,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reserved, err := s.reserved.CountReserved(ctx, input.Stockable, nil, time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reservations")
	}
	out.ReservedQty = reserved
	out.AvailableQty = out.OnHandQty - reserved
	return out, nil
}

func (s *service) ListMovements(ctx context.Context, stockable types.Stockable, limit int) ([]models.StockMovement, error) {
	if err := stockable.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stockable")
	}
	movements, err := s.repo.ListMovements(ctx, stockable, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return movements, nil
}

// ListLowStock returns managed records at or below their low-stock threshold.
func (s *service) ListLowStock(ctx context.Context) ([]models.StockRecord, error) {
	records, err := s.repo.ListBelowThreshold(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock records")
	}
	return records, nil
}
