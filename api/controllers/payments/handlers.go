package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/api/responses"
	"github.com/brasilcart/storefront-backend/api/validators"
	paymentsvc "github.com/brasilcart/storefront-backend/internal/payments"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
	"github.com/brasilcart/storefront-backend/pkg/logger"
)

type cardRequest struct {
	Number      string `json:"card_number" validate:"required,min=8"`
	Holder      string `json:"card_holder" validate:"required"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=2000"`
	CVV         string `json:"cvv" validate:"required,min=3,max=4"`
}

type createPaymentRequest struct {
	OrderID      uuid.UUID    `json:"order_id" validate:"required"`
	Method       string       `json:"method" validate:"required,oneof=credit_card pix bank_slip"`
	Installments int          `json:"installments" validate:"min=0"`
	Card         *cardRequest `json:"card"`
}

type refundRequest struct {
	// AmountCents of zero refunds everything still captured.
	AmountCents int `json:"amount_cents" validate:"min=0"`
}

// Create starts a payment attempt for an order.
func Create(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := paymentsvc.CreateInput{
			OrderID:      payload.OrderID,
			Method:       enums.PaymentMethod(payload.Method),
			Installments: payload.Installments,
		}
		if payload.Card != nil {
			input.Card = &paymentsvc.CardDetails{
				Number:      payload.Card.Number,
				Holder:      payload.Card.Holder,
				ExpiryMonth: payload.Card.ExpiryMonth,
				ExpiryYear:  payload.Card.ExpiryYear,
				CVV:         payload.Card.CVV,
			}
		}

		payment, err := svc.Create(r.Context(), input)
		if err != nil {
			// A declined card still persists the attempt; the error body
			// carries the decline while the row stays queryable.
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentView(payment))
	}
}

// Detail returns a single payment attempt.
func Detail(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentView(payment))
	}
}

// ListByOrder returns every attempt recorded against an order, newest first.
func ListByOrder(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]paymentView, 0, len(list))
		for i := range list {
			views = append(views, newPaymentView(&list[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

// InstallmentOptions quotes the installment plans available for an order's total.
func InstallmentOptions(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		options, err := svc.Options(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, options)
	}
}

// Refund refunds an approved payment, partially or in full.
func Refund(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Refund(r.Context(), paymentID, payload.AmountCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentView(payment))
	}
}
