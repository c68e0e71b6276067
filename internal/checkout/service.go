package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/internal/cart"
	"github.com/brasilcart/storefront-backend/internal/orders"
	"github.com/brasilcart/storefront-backend/internal/reservation"
	"github.com/brasilcart/storefront-backend/pkg/config"
	pkgdb "github.com/brasilcart/storefront-backend/pkg/db"
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

// stockConverter is the slice of the reservation service checkout depends on.
type stockConverter interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, requests []reservation.Request) ([]reservation.Result, error)
	Convert(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, orderID uuid.UUID) error
}

// CreateOrderInput carries everything checkout needs beyond the cart itself.
type CreateOrderInput struct {
	CartID            uuid.UUID
	ShippingCostCents int
}

// CreatedEvent is emitted once per placed order.
type CreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CartID      uuid.UUID `json:"cart_id"`
	TotalCents  int       `json:"total_cents"`
	ItemCount   int       `json:"item_count"`
}

// ConvertedEvent marks the cart side of a successful checkout.
type ConvertedEvent struct {
	CartID  uuid.UUID `json:"cart_id"`
	OrderID uuid.UUID `json:"order_id"`
}

// Service turns an active cart into an order in one transaction.
type Service interface {
	// CreateOrder revalidates the cart's holds, snapshots its lines and
	// converts it. A cart converts exactly once; repeating the call
	// returns the order the first call produced.
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
}

type service struct {
	carts     cart.Repository
	orders    orders.Repository
	converter stockConverter
	tx        txRunner
	outbox    outboxPublisher
	cfg       config.CheckoutConfig
	now       func() time.Time
}

// NewService builds a checkout service with the required dependencies.
func NewService(carts cart.Repository, orderRepo orders.Repository, converter stockConverter, tx txRunner, ob outboxPublisher, cfg config.CheckoutConfig) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if converter == nil {
		return nil, fmt.Errorf("stock converter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		carts:     carts,
		orders:    orderRepo,
		converter: converter,
		tx:        tx,
		outbox:    ob,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if input.ShippingCostCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost must not be negative")
	}

	// a converted cart fails fast; the details point at the winning order
	if existing, err := s.orders.FindByCartID(ctx, input.CartID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeCheckoutConflict, "cart was already checked out").
			WithDetails(map[string]any{"order_id": existing.ID, "order_number": existing.OrderNumber})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing order")
	}

	attempts := s.cfg.OrderNumberAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var placed *models.Order
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		placed, lastErr = s.placeOnce(ctx, input)
		if lastErr == nil {
			return placed, nil
		}

		// concurrent checkout of the same cart: the winner's order stands,
		// the loser gets the conflict
		if pkgdb.IsUniqueViolation(lastErr, "uq_orders_cart_id") {
			return nil, pkgerrors.New(pkgerrors.CodeCheckoutConflict, "cart was checked out concurrently")
		}
		if pkgdb.IsUniqueViolation(lastErr, "uq_orders_order_number") {
			continue
		}
		return nil, lastErr
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "could not allocate an order number")
}

func (s *service) placeOnce(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		record, err := carts.FindByID(ctx, input.CartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if record.Status != enums.CartStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active").
				WithDetails(map[string]any{"status": record.Status})
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		// re-validate every hold at the moment of purchase; lapsed holds
		// are re-acquired here or the checkout fails
		requests := make([]reservation.Request, len(record.Items))
		for i, item := range record.Items {
			requests[i] = reservation.Request{Stockable: item.Stockable(), Quantity: item.Quantity}
		}
		results, err := s.converter.ReserveTx(ctx, tx, record.ID, requests)
		if err != nil {
			return err
		}
		if !reservation.AllReserved(results) {
			shortages := make([]map[string]any, 0)
			for i, result := range results {
				if result.Reserved {
					continue
				}
				shortages = append(shortages, map[string]any{
					"product_id": record.Items[i].ProductID,
					"requested":  record.Items[i].Quantity,
					"available":  result.AvailableQty,
				})
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock changed before checkout completed").
				WithDetails(map[string]any{"items": shortages})
		}

		now := s.now()
		number, err := newOrderNumber(now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order number")
		}

		order := models.Order{
			OrderNumber:       number,
			CartID:            record.ID,
			CustomerID:        record.CustomerID,
			Status:            enums.OrderStatusPending,
			PaymentStatus:     enums.PaymentStatusPending,
			SubtotalCents:     record.SubtotalCents,
			ShippingCostCents: input.ShippingCostCents,
			DiscountCents:     record.DiscountCents,
			TotalCents:        record.SubtotalCents + input.ShippingCostCents - record.DiscountCents,
			PlacedAt:          now,
			Items:             snapshotItems(record.Items),
		}
		if record.CustomerID == nil {
			token, err := newAccessToken()
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "access token")
			}
			order.AccessToken = &token
		}

		created, err := orderRepo.Create(ctx, &order)
		if err != nil {
			return err
		}

		if err := s.converter.Convert(ctx, tx, record.ID, created.ID); err != nil {
			return err
		}

		record.Status = enums.CartStatusConverted
		record.ConvertedAt = &now
		if err := carts.Save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}

		createdEvent := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Data: CreatedEvent{
				OrderID:     created.ID,
				OrderNumber: created.OrderNumber,
				CartID:      record.ID,
				TotalCents:  created.TotalCents,
				ItemCount:   len(created.Items),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, createdEvent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}
		convertedEvent := outbox.DomainEvent{
			EventType:     enums.EventCartConverted,
			AggregateType: enums.AggregateCart,
			AggregateID:   record.ID,
			Data:          ConvertedEvent{CartID: record.ID, OrderID: created.ID},
			Version:       1,
		}
		if err := s.outbox.Emit(ctx, tx, convertedEvent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit cart converted event")
		}

		placed = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func snapshotItems(lines []models.CartItem) []models.OrderItem {
	items := make([]models.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			ProductName:    line.ProductName,
			ProductSKU:     line.ProductSKU,
			UnitPriceCents: line.UnitPriceCents,
			SalePriceCents: line.SalePriceCents,
			Quantity:       line.Quantity,
			TotalCents:     line.LineTotalCents(),
		}
	}
	return items
}
