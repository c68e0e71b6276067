package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brasilcart/storefront-backend/internal/reservation"
	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockReserver is the slice of the reservation service carts depend on.
type stockReserver interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, requests []reservation.Request) ([]reservation.Result, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, stockable types.Stockable) error
	ReleaseAll(ctx context.Context, cartID uuid.UUID) error
	Touch(ctx context.Context, cartID uuid.UUID) error
}

// CreateInput opens a cart for a known customer or an anonymous session.
type CreateInput struct {
	CustomerID *uuid.UUID
	SessionID  *string
}

// AddItemInput carries the product snapshot captured at add time.
type AddItemInput struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	ProductName    string
	ProductSKU     string
	Quantity       int
	UnitPriceCents int
	SalePriceCents *int
}

// Service owns cart lifecycle and keeps stock holds in lockstep with lines.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.CartRecord, error)
	Get(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error)
	AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*models.CartRecord, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartRecord, error)
	SetDiscount(ctx context.Context, cartID uuid.UUID, discountCents int) (*models.CartRecord, error)
	Abandon(ctx context.Context, cartID uuid.UUID) error
}

type service struct {
	repo     Repository
	reserver stockReserver
	tx       txRunner
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, reserver stockReserver, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if reserver == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, reserver: reserver, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.CartRecord, error) {
	cart := models.CartRecord{
		CustomerID: input.CustomerID,
		SessionID:  input.SessionID,
		Status:     enums.CartStatusActive,
	}
	created, err := s.repo.Create(ctx, &cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*models.CartRecord, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.UnitPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadActiveCart(ctx, repo, cartID)
		if err != nil {
			return err
		}

		line, err := repo.FindItemByProduct(ctx, cartID, input.ProductID, input.VariantID)
		newLine := false
		switch {
		case err == nil:
			line.Quantity += input.Quantity
		case errors.Is(err, gorm.ErrRecordNotFound):
			newLine = true
			line = &models.CartItem{
				CartID:         cartID,
				ProductID:      input.ProductID,
				VariantID:      input.VariantID,
				ProductName:    input.ProductName,
				ProductSKU:     input.ProductSKU,
				Quantity:       input.Quantity,
				UnitPriceCents: input.UnitPriceCents,
				SalePriceCents: input.SalePriceCents,
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if err := s.holdLine(ctx, tx, cartID, *line); err != nil {
			return err
		}

		if newLine {
			if err := repo.CreateItem(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		} else {
			if err := repo.SaveItem(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		}

		return s.recalculate(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}

	// cart activity refreshes every hold the cart has
	if err := s.reserver.Touch(ctx, cartID); err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*models.CartRecord, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, itemID)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadActiveCart(ctx, repo, cartID)
		if err != nil {
			return err
		}

		line, err := repo.FindItem(ctx, cartID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		line.Quantity = quantity
		if err := s.holdLine(ctx, tx, cartID, *line); err != nil {
			return err
		}
		if err := repo.SaveItem(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return s.recalculate(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}

	if err := s.reserver.Touch(ctx, cartID); err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func (s *service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartRecord, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadActiveCart(ctx, repo, cartID)
		if err != nil {
			return err
		}

		line, err := repo.FindItem(ctx, cartID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if err := s.reserver.ReleaseTx(ctx, tx, cartID, line.Stockable()); err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, line.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return s.recalculate(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func (s *service) SetDiscount(ctx context.Context, cartID uuid.UUID, discountCents int) (*models.CartRecord, error) {
	if discountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadActiveCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		cart.DiscountCents = discountCents
		return s.recalculate(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func (s *service) Abandon(ctx context.Context, cartID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadActiveCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		cart.Status = enums.CartStatusAbandoned
		if err := repo.Save(ctx, cart); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.reserver.ReleaseAll(ctx, cartID)
}

func (s *service) loadActiveCart(ctx context.Context, repo Repository, cartID uuid.UUID) (*models.CartRecord, error) {
	cart, err := repo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active").
			WithDetails(map[string]any{"status": cart.Status})
	}
	return cart, nil
}

func (s *service) holdLine(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, line models.CartItem) error {
	results, err := s.reserver.ReserveTx(ctx, tx, cartID, []reservation.Request{
		{Stockable: line.Stockable(), Quantity: line.Quantity},
	})
	if err != nil {
		return err
	}
	if !results[0].Reserved {
		// sold out entirely vs not enough for the requested quantity
		code := pkgerrors.CodeInsufficientStock
		message := "not enough stock available"
		if results[0].AvailableQty <= 0 {
			code = pkgerrors.CodeProductNotAvailable
			message = "product is not available"
		}
		return pkgerrors.New(code, message).
			WithDetails(map[string]any{
				"stockable": results[0].Stockable,
				"requested": line.Quantity,
				"available": results[0].AvailableQty,
			})
	}
	return nil
}

func (s *service) recalculate(ctx context.Context, repo Repository, cart *models.CartRecord) error {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	subtotal := 0
	for _, item := range items {
		subtotal += item.LineTotalCents()
	}
	cart.SubtotalCents = subtotal
	if cart.DiscountCents > subtotal {
		cart.DiscountCents = subtotal
	}
	cart.TotalCents = subtotal - cart.DiscountCents
	if err := repo.Save(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart totals")
	}
	return nil
}
