package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	cartsvc "github.com/brasilcart/storefront-backend/internal/cart"
	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
)

type fakeCartService struct {
	cart    *models.CartRecord
	err     error
	lastAdd cartsvc.AddItemInput
}

func (f *fakeCartService) Create(context.Context, cartsvc.CreateInput) (*models.CartRecord, error) {
	return f.cart, f.err
}

func (f *fakeCartService) Get(context.Context, uuid.UUID) (*models.CartRecord, error) {
	return f.cart, f.err
}

func (f *fakeCartService) AddItem(_ context.Context, _ uuid.UUID, input cartsvc.AddItemInput) (*models.CartRecord, error) {
	f.lastAdd = input
	return f.cart, f.err
}

func (f *fakeCartService) UpdateItemQuantity(context.Context, uuid.UUID, uuid.UUID, int) (*models.CartRecord, error) {
	return f.cart, f.err
}

func (f *fakeCartService) RemoveItem(context.Context, uuid.UUID, uuid.UUID) (*models.CartRecord, error) {
	return f.cart, f.err
}

func (f *fakeCartService) SetDiscount(context.Context, uuid.UUID, int) (*models.CartRecord, error) {
	return f.cart, f.err
}

func (f *fakeCartService) Abandon(context.Context, uuid.UUID) error {
	return f.err
}

func activeCart() *models.CartRecord {
	return &models.CartRecord{
		ID:            uuid.New(),
		Status:        enums.CartStatusActive,
		SubtotalCents: 5000,
		TotalCents:    5000,
	}
}

func newCartRouter(svc cartsvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/carts", Create(svc, nil))
	r.Get("/carts/{cartId}", Fetch(svc, nil))
	r.Post("/carts/{cartId}/items", AddItem(svc, nil))
	return r
}

func TestCreateReturnsCreatedCart(t *testing.T) {
	svc := &fakeCartService{cart: activeCart()}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/carts", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != svc.cart.ID {
		t.Fatalf("expected cart id %s, got %s", svc.cart.ID, envelope.Data.ID)
	}
	if envelope.Data.Status != "active" {
		t.Fatalf("expected active status, got %q", envelope.Data.Status)
	}
}

func TestFetchRejectsMalformedID(t *testing.T) {
	router := newCartRouter(&fakeCartService{cart: activeCart()})

	req := httptest.NewRequest(http.MethodGet, "/carts/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestAddItemValidatesPayload(t *testing.T) {
	svc := &fakeCartService{cart: activeCart()}
	router := newCartRouter(svc)
	cartID := uuid.New()

	body := `{"product_id":"` + uuid.NewString() + `","product_name":"Cafeteira","product_sku":"CAF-001","quantity":0,"unit_price_cents":5000}`
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/carts/%s/items", cartID), bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d (%s)", rec.Code, rec.Body.String())
	}

	body = `{"product_id":"` + uuid.NewString() + `","product_name":"Cafeteira","product_sku":"CAF-001","quantity":2,"unit_price_cents":5000}`
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/carts/%s/items", cartID), bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid item, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastAdd.Quantity != 2 || svc.lastAdd.ProductSKU != "CAF-001" {
		t.Fatalf("input not forwarded: %+v", svc.lastAdd)
	}
}

func TestAddItemSurfacesInsufficientStock(t *testing.T) {
	svc := &fakeCartService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "only 1 unit available")}
	router := newCartRouter(svc)

	body := `{"product_id":"` + uuid.NewString() + `","product_name":"Cafeteira","product_sku":"CAF-001","quantity":5,"unit_price_cents":5000}`
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/carts/%s/items", uuid.New()), bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d", rec.Code)
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock code, got %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "only 1 unit available" {
		t.Fatalf("public message not surfaced: %q", envelope.Error.Message)
	}
}
