package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/brasilcart/storefront-backend/api/routes"
	"github.com/brasilcart/storefront-backend/internal/auditlog"
	"github.com/brasilcart/storefront-backend/internal/cart"
	checkoutsvc "github.com/brasilcart/storefront-backend/internal/checkout"
	"github.com/brasilcart/storefront-backend/internal/gateway"
	"github.com/brasilcart/storefront-backend/internal/inventory"
	"github.com/brasilcart/storefront-backend/internal/orders"
	"github.com/brasilcart/storefront-backend/internal/payments"
	"github.com/brasilcart/storefront-backend/internal/reservation"
	gatewaywebhook "github.com/brasilcart/storefront-backend/internal/webhooks"
	"github.com/brasilcart/storefront-backend/pkg/config"
	"github.com/brasilcart/storefront-backend/pkg/db"
	"github.com/brasilcart/storefront-backend/pkg/logger"
	"github.com/brasilcart/storefront-backend/pkg/migrate"
	"github.com/brasilcart/storefront-backend/pkg/outbox"
	"github.com/brasilcart/storefront-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	inventoryRepo := inventory.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)

	reservationService, err := reservation.NewService(
		reservation.NewRepository(gormDB),
		inventoryRepo,
		dbClient,
		outboxService,
		cfg.Reservation,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventoryRepo, reservationService, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, reservationService, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orderRepo, inventoryRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(cartRepo, orderRepo, reservationService, dbClient, outboxService, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	auditLogger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api").Logger()
	auditService, err := auditlog.NewService(auditlog.NewRepository(gormDB), auditLogger)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit log service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		payments.NewRepository(gormDB),
		orderRepo,
		ordersService,
		gateway.NewMock(),
		auditService,
		dbClient,
		outboxService,
		cfg.Gateway,
		cfg.Installments,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Payments:    paymentsService,
		Audit:       auditService,
		Idempotency: redisClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			cartService,
			checkoutService,
			ordersService,
			paymentsService,
			inventoryService,
			webhookService,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}
