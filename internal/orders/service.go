package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/internal/inventory"
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

// StatusChangedEvent reports an order status move.
type StatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
}

// PaidEvent is emitted once when an order settles.
type PaidEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	TotalCents  int       `json:"total_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

// CancelledEvent is emitted when an order is cancelled and stock returns.
type CancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Restocked   int       `json:"restocked_units"`
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	GetByAccessToken(ctx context.Context, token string) (*models.Order, error)
	List(ctx context.Context, limit, offset int) ([]models.Order, error)

	// MarkAsPaid settles the order. Calling it on an already-paid order is
	// a no-op, not an error.
	MarkAsPaid(ctx context.Context, orderID uuid.UUID) error
	ApplyPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
	MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) error
	Complete(ctx context.Context, orderID uuid.UUID) error
	Cancel(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo      Repository
	inventory inventory.Repository
	tx        txRunner
	outbox    outboxPublisher
	now       func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, inv inventory.Repository, tx txRunner, ob outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	return &service{repo: repo, inventory: inv, tx: tx, outbox: ob, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.find(ctx, func(repo Repository) (*models.Order, error) {
		return repo.FindByID(ctx, id)
	})
}

func (s *service) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	return s.find(ctx, func(repo Repository) (*models.Order, error) {
		return repo.FindByNumber(ctx, number)
	})
}

func (s *service) GetByAccessToken(ctx context.Context, token string) (*models.Order, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "access token required")
	}
	return s.find(ctx, func(repo Repository) (*models.Order, error) {
		return repo.FindByAccessToken(ctx, token)
	})
}

func (s *service) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	orders, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) find(ctx context.Context, fn func(Repository) (*models.Order, error)) (*models.Order, error) {
	order, err := fn(s.repo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) MarkAsPaid(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.PaymentStatus == enums.PaymentStatusApproved {
			return nil
		}
		if !CanTransitionPayment(order.PaymentStatus, enums.PaymentStatusApproved) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment cannot be approved from its current state").
				WithDetails(map[string]any{"payment_status": order.PaymentStatus})
		}

		now := s.now()
		order.PaymentStatus = enums.PaymentStatusApproved
		order.PaidAt = &now
		if CanTransition(order.Status, enums.OrderStatusProcessing) {
			order.Status = enums.OrderStatusProcessing
		}
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: PaidEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				TotalCents:  order.TotalCents,
				PaidAt:      now,
			},
			Version: 1,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) ApplyPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if status == enums.PaymentStatusApproved {
		return s.MarkAsPaid(ctx, orderID)
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.PaymentStatus == status {
			return nil
		}
		if !CanTransitionPayment(order.PaymentStatus, status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal payment status transition").
				WithDetails(map[string]any{"from": order.PaymentStatus, "to": status})
		}
		order.PaymentStatus = status
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
}

func (s *service) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		from := order.Status
		if !CanTransition(from, enums.OrderStatusShipped) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot ship from its current state").
				WithDetails(map[string]any{"status": from})
		}

		now := s.now()
		order.Status = enums.OrderStatusShipped
		order.ShippedAt = &now
		if trackingNumber != "" {
			order.TrackingNumber = &trackingNumber
		}
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return s.emitStatusChanged(ctx, tx, order, from)
	})
}

func (s *service) Complete(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		from := order.Status
		if !CanTransition(from, enums.OrderStatusCompleted) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot complete from its current state").
				WithDetails(map[string]any{"status": from})
		}

		now := s.now()
		order.Status = enums.OrderStatusCompleted
		order.DeliveredAt = &now
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return s.emitStatusChanged(ctx, tx, order, from)
	})
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inv := s.inventory.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		from := order.Status
		if !CanTransition(from, enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot cancel from its current state").
				WithDetails(map[string]any{"status": from})
		}

		restocked := 0
		for _, item := range order.Items {
			stockable := item.Stockable()
			record, err := inv.FindStockForUpdate(ctx, stockable)
			if err != nil {
				if inventory.IsNotFound(err) {
					continue
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stock record")
			}
			if !record.ManageStock {
				continue
			}
			if err := inv.AddOnHand(ctx, record.ID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock cancelled order")
			}
			movement := models.StockMovement{
				Stockable: stockable,
				Delta:     item.Quantity,
				Reason:    enums.StockMovementReasonCancellation,
				OrderID:   &order.ID,
			}
			if err := inv.RecordMovement(ctx, &movement); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record restock movement")
			}
			restocked += item.Quantity
		}

		now := s.now()
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: CancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Restocked:   restocked,
			},
			Version: 1,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: StatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			From:        from,
			To:          order.Status,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}
