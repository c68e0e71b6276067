package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brasilcart/storefront-backend/api/controllers"
	cartcontrollers "github.com/brasilcart/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/brasilcart/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/brasilcart/storefront-backend/api/controllers/payments"
	webhookcontrollers "github.com/brasilcart/storefront-backend/api/controllers/webhooks"
	"github.com/brasilcart/storefront-backend/api/middleware"
	"github.com/brasilcart/storefront-backend/internal/cart"
	checkoutsvc "github.com/brasilcart/storefront-backend/internal/checkout"
	"github.com/brasilcart/storefront-backend/internal/inventory"
	"github.com/brasilcart/storefront-backend/internal/orders"
	"github.com/brasilcart/storefront-backend/internal/payments"
	gatewaywebhook "github.com/brasilcart/storefront-backend/internal/webhooks"
	"github.com/brasilcart/storefront-backend/pkg/config"
	"github.com/brasilcart/storefront-backend/pkg/db"
	"github.com/brasilcart/storefront-backend/pkg/logger"
	"github.com/brasilcart/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
	inventoryService inventory.Service,
	webhookService *gatewaywebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(
			webhookService,
			cfg.Gateway.WebhookSecret,
			cfg.Gateway.WebhookTolerance(),
			logg,
		))
	})

	r.Route("/api/v1/carts", func(r chi.Router) {
		r.Post("/", cartcontrollers.Create(cartService, logg))
		r.Route("/{cartId}", func(r chi.Router) {
			r.Get("/", cartcontrollers.Fetch(cartService, logg))
			r.Post("/items", cartcontrollers.AddItem(cartService, logg))
			r.Patch("/items/{itemId}", cartcontrollers.UpdateItemQuantity(cartService, logg))
			r.Delete("/items/{itemId}", cartcontrollers.RemoveItem(cartService, logg))
			r.Put("/discount", cartcontrollers.SetDiscount(cartService, logg))
			r.Post("/abandon", cartcontrollers.Abandon(cartService, logg))
		})
	})

	r.Post("/api/v1/checkout", ordercontrollers.Checkout(checkoutService, logg))

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", ordercontrollers.List(ordersService, logg))
		r.Get("/number/{orderNumber}", ordercontrollers.DetailByNumber(ordersService, logg))
		r.Get("/track/{accessToken}", ordercontrollers.GuestLookup(ordersService, logg))
		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(ordersService, logg))
			r.Post("/ship", ordercontrollers.Ship(ordersService, logg))
			r.Post("/complete", ordercontrollers.Complete(ordersService, logg))
			r.Post("/cancel", ordercontrollers.Cancel(ordersService, logg))
			r.Get("/payments", paymentcontrollers.ListByOrder(paymentsService, logg))
			r.Get("/installment-options", paymentcontrollers.InstallmentOptions(paymentsService, logg))
		})
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/", paymentcontrollers.Create(paymentsService, logg))
		r.Get("/{paymentId}", paymentcontrollers.Detail(paymentsService, logg))
		r.Post("/{paymentId}/refund", paymentcontrollers.Refund(paymentsService, logg))
	})

	r.Route("/api/admin/v1/inventory", func(r chi.Router) {
		r.Get("/low-stock", controllers.LowStock(inventoryService, logg))
		r.Route("/{stockableType}/{stockableId}", func(r chi.Router) {
			r.Get("/", controllers.StockAvailability(inventoryService, logg))
			r.Post("/adjust", controllers.AdjustStock(inventoryService, logg))
			r.Get("/movements", controllers.StockMovements(inventoryService, logg))
		})
	})

	return r
}
