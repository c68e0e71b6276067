package reservation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/internal/inventory"
	"github.com/brasilcart/storefront-backend/pkg/config"
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

// Request asks for a hold of Quantity units for one cart line. A request for
// an already-held stockable replaces the previous hold, it does not stack.
type Request struct {
	Stockable types.Stockable
	Quantity  int
}

// Result reports the outcome for one request. Reserve commits the holds that
// succeeded even when others in the same batch fail.
type Result struct {
	Stockable    types.Stockable `json:"stockable"`
	Reserved     bool            `json:"reserved"`
	Reason       string          `json:"reason,omitempty"`
	AvailableQty int             `json:"available_qty"`
	ExpiresAt    time.Time       `json:"expires_at,omitzero"`
}

// AllReserved reports whether every request in the batch got its hold.
func AllReserved(results []Result) bool {
	for _, result := range results {
		if !result.Reserved {
			return false
		}
	}
	return true
}

// ExpiredEvent is emitted when the sweeper removes a lapsed hold.
type ExpiredEvent struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	CartID        uuid.UUID       `json:"cart_id"`
	Stockable     types.Stockable `json:"stockable"`
	Quantity      int             `json:"quantity"`
	ExpiredAt     time.Time       `json:"expired_at"`
}

// Service owns the stock hold lifecycle: acquire, refresh, release, convert
// and sweep.
type Service interface {
	Reserve(ctx context.Context, cartID uuid.UUID, requests []Request) ([]Result, error)
	// ReserveTx is Reserve running inside the caller's transaction, for
	// callers that tie holds to other writes.
	ReserveTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, requests []Request) ([]Result, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
	Release(ctx context.Context, cartID uuid.UUID, stockable types.Stockable) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, stockable types.Stockable) error
	ReleaseAll(ctx context.Context, cartID uuid.UUID) error
	// Convert finalizes the cart's holds inside the caller's transaction:
	// stamps converted_at, decrements on-hand and writes the conversion
	// movement per stockable.
	Convert(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, orderID uuid.UUID) error
	SweepExpired(ctx context.Context, batchSize int) (int, error)

	// CountReserved satisfies the inventory availability view.
	CountReserved(ctx context.Context, stockable types.Stockable, excludeCartID *uuid.UUID, now time.Time) (int, error)
}

type service struct {
	repo      Repository
	inventory inventory.Repository
	tx        txRunner
	outbox    outboxPublisher
	cfg       config.ReservationConfig
	now       func() time.Time
}

// NewService builds a reservation service with the required dependencies.
func NewService(repo Repository, inv inventory.Repository, tx txRunner, ob outboxPublisher, cfg config.ReservationConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		inventory: inv,
		tx:        tx,
		outbox:    ob,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (s *service) Reserve(ctx context.Context, cartID uuid.UUID, requests []Request) ([]Result, error) {
	var results []Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		results, txErr = s.ReserveTx(ctx, tx, cartID, requests)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, requests []Request) ([]Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation")
	}
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one reservation request required")
	}
	for _, request := range requests {
		if err := request.Stockable.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stockable")
		}
		if request.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
	}

	// lock stock rows in a stable order so concurrent carts cannot deadlock
	ordered := make([]Request, len(requests))
	copy(ordered, requests)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Stockable.String() < ordered[j].Stockable.String()
	})

	repo := s.repo.WithTx(tx)
	inv := s.inventory.WithTx(tx)
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL())

	resultsByKey := make(map[string]Result, len(ordered))
	for _, request := range ordered {
		result, err := s.reserveOne(ctx, repo, inv, cartID, request, now, expiresAt)
		if err != nil {
			return nil, err
		}
		resultsByKey[request.Stockable.String()] = result
	}

	results := make([]Result, len(requests))
	for i, request := range requests {
		results[i] = resultsByKey[request.Stockable.String()]
	}
	return results, nil
}

func (s *service) reserveOne(ctx context.Context, repo Repository, inv inventory.Repository, cartID uuid.UUID, request Request, now, expiresAt time.Time) (Result, error) {
	record, err := inv.FindStockForUpdate(ctx, request.Stockable)
	if err != nil {
		if !inventory.IsNotFound(err) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stock record")
		}
		// untracked items never block checkout and carry no hold row
		return Result{Stockable: request.Stockable, Reserved: true}, nil
	}
	if !record.ManageStock {
		return Result{Stockable: request.Stockable, Reserved: true}, nil
	}

	reservedByOthers, err := repo.SumActive(ctx, request.Stockable, &cartID, now)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active reservations")
	}
	available := record.OnHandQty - reservedByOthers

	if request.Quantity > available && !s.cfg.AllowNegativeStock {
		return Result{
			Stockable:    request.Stockable,
			Reserved:     false,
			Reason:       "insufficient stock",
			AvailableQty: max(available, 0),
		}, nil
	}

	existing, err := repo.FindActive(ctx, cartID, request.Stockable, now)
	switch {
	case err == nil:
		existing.Quantity = request.Quantity
		existing.ExpiresAt = expiresAt
		if err := repo.Save(ctx, existing); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation")
		}
	case inventory.IsNotFound(err):
		hold := models.Reservation{
			Stockable: request.Stockable,
			CartID:    cartID,
			Quantity:  request.Quantity,
			ExpiresAt: expiresAt,
		}
		if err := repo.Create(ctx, &hold); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}
	default:
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}

	return Result{
		Stockable:    request.Stockable,
		Reserved:     true,
		AvailableQty: available - request.Quantity,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *service) Touch(ctx context.Context, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL())
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		holds, err := repo.FindActiveByCartForUpdate(ctx, cartID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
		}
		for i := range holds {
			holds[i].ExpiresAt = expiresAt
			if err := repo.Save(ctx, &holds[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh reservation")
			}
		}
		return nil
	})
}

func (s *service) Release(ctx context.Context, cartID uuid.UUID, stockable types.Stockable) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if err := stockable.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stockable")
	}
	// releasing an already-released hold is a no-op
	if _, err := s.repo.DeleteActive(ctx, cartID, stockable, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservation")
	}
	return nil
}

func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, stockable types.Stockable) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation release")
	}
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if err := stockable.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stockable")
	}
	if _, err := s.repo.WithTx(tx).DeleteActive(ctx, cartID, stockable, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservation")
	}
	return nil
}

func (s *service) ReleaseAll(ctx context.Context, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if _, err := s.repo.DeleteActiveByCart(ctx, cartID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservations")
	}
	return nil
}

func (s *service) Convert(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation conversion")
	}
	if cartID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id and order id required")
	}

	repo := s.repo.WithTx(tx)
	inv := s.inventory.WithTx(tx)
	now := s.now()

	holds, err := repo.FindActiveByCartForUpdate(ctx, cartID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}

	sort.Slice(holds, func(i, j int) bool {
		return holds[i].Stockable.String() < holds[j].Stockable.String()
	})

	ids := make([]uuid.UUID, 0, len(holds))
	for _, hold := range holds {
		record, err := inv.FindStockForUpdate(ctx, hold.Stockable)
		if err != nil {
			if inventory.IsNotFound(err) {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stock record")
		}
		if !record.ManageStock {
			continue
		}
		if err := inv.AddOnHand(ctx, record.ID, -hold.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		movement := models.StockMovement{
			Stockable: hold.Stockable,
			Delta:     -hold.Quantity,
			Reason:    enums.StockMovementReasonConversion,
			OrderID:   &orderID,
			CartID:    &cartID,
		}
		if err := inv.RecordMovement(ctx, &movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record conversion movement")
		}
		ids = append(ids, hold.ID)
	}

	// converted rows stay behind with a timestamp as the audit trail
	if err := repo.MarkConverted(ctx, ids, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reservations converted")
	}
	return nil
}

func (s *service) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	var removed int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		expired, err := repo.ListExpired(ctx, now, batchSize)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired reservations")
		}
		if len(expired) == 0 {
			return nil
		}

		// Deletes are re-guarded per row: a checkout may convert a hold
		// between the scan above and this loop, and a converted row must
		// neither be deleted nor reported expired.
		for _, hold := range expired {
			deleted, err := repo.DeleteUnconverted(ctx, []uuid.UUID{hold.ID})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete expired reservation")
			}
			if deleted == 0 {
				continue
			}
			removed++

			event := outbox.DomainEvent{
				EventType:     enums.EventReservationExpired,
				AggregateType: enums.AggregateReservation,
				AggregateID:   hold.ID,
				Data: ExpiredEvent{
					ReservationID: hold.ID,
					CartID:        hold.CartID,
					Stockable:     hold.Stockable,
					Quantity:      hold.Quantity,
					ExpiredAt:     hold.ExpiresAt,
				},
				Version: 1,
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation expired event")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *service) CountReserved(ctx context.Context, stockable types.Stockable, excludeCartID *uuid.UUID, now time.Time) (int, error) {
	return s.repo.SumActive(ctx, stockable, excludeCartID, now)
}
