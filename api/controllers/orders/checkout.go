package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/api/responses"
	"github.com/brasilcart/storefront-backend/api/validators"
	checkoutsvc "github.com/brasilcart/storefront-backend/internal/checkout"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/logger"
)

type checkoutRequest struct {
	CartID            uuid.UUID `json:"cart_id" validate:"required"`
	ShippingCostCents int       `json:"shipping_cost_cents" validate:"min=0"`
}

// checkoutResponse is the only place the guest access token leaves the API.
type checkoutResponse struct {
	orderView
	AccessToken string `json:"access_token"`
}

// Checkout converts an active cart into a placed order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), checkoutsvc.CreateOrderInput{
			CartID:            payload.CartID,
			ShippingCostCents: payload.ShippingCostCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{orderView: newOrderView(order)}
		if order.AccessToken != nil {
			resp.AccessToken = *order.AccessToken
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
