package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/api/responses"
	"github.com/brasilcart/storefront-backend/api/validators"
	inventorysvc "github.com/brasilcart/storefront-backend/internal/inventory"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/logger"
	"github.com/brasilcart/storefront-backend/pkg/types"
)

type adjustStockRequest struct {
	Delta int     `json:"delta" validate:"required"`
	Note  *string `json:"note" validate:"omitempty,max=500"`
}

type stockMovementView struct {
	ID        uuid.UUID  `json:"id"`
	Delta     int        `json:"delta"`
	Reason    string     `json:"reason"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	CartID    *uuid.UUID `json:"cart_id,omitempty"`
	Note      *string    `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// stockableFromPath resolves a {stockableType}/{stockableId} route pair.
func stockableFromPath(r *http.Request) (types.Stockable, error) {
	kind := enums.StockableType(chi.URLParam(r, "stockableType"))
	if !kind.IsValid() {
		return types.Stockable{}, pkgerrors.New(pkgerrors.CodeValidation, "stockable type must be product or variant")
	}
	id, err := validators.ParsePathUUID(chi.URLParam(r, "stockableId"), "stockableId")
	if err != nil {
		return types.Stockable{}, err
	}
	return types.Stockable{Type: kind, ID: id}, nil
}

// StockAvailability reports on-hand, reserved and purchasable quantities.
func StockAvailability(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		stockable, err := stockableFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := svc.GetAvailability(r.Context(), stockable)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

// AdjustStock applies an admin correction to on-hand quantity.
func AdjustStock(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		stockable, err := stockableFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := svc.Adjust(r.Context(), inventorysvc.AdjustInput{
			Stockable: stockable,
			Delta:     payload.Delta,
			Note:      payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

type lowStockView struct {
	Stockable         types.Stockable `json:"stockable"`
	OnHandQty         int             `json:"on_hand_qty"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty"`
}

// LowStock lists managed records at or below their low-stock threshold.
func LowStock(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		records, err := svc.ListLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]lowStockView, 0, len(records))
		for _, record := range records {
			views = append(views, lowStockView{
				Stockable:         record.Stockable,
				OnHandQty:         record.OnHandQty,
				LowStockThreshold: record.LowStockThreshold,
			})
		}
		responses.WriteSuccess(w, views)
	}
}

// StockMovements lists the audit trail of quantity changes, newest first.
func StockMovements(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		stockable, err := stockableFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movements, err := svc.ListMovements(r.Context(), stockable, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]stockMovementView, 0, len(movements))
		for _, m := range movements {
			views = append(views, stockMovementView{
				ID:        m.ID,
				Delta:     m.Delta,
				Reason:    string(m.Reason),
				OrderID:   m.OrderID,
				CartID:    m.CartID,
				Note:      m.Note,
				CreatedAt: m.CreatedAt,
			})
		}
		responses.WriteSuccess(w, views)
	}
}
