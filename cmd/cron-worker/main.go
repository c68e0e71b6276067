package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/brasilcart/storefront-backend/internal/auditlog"
	"github.com/brasilcart/storefront-backend/internal/cron"
	"github.com/brasilcart/storefront-backend/internal/gateway"
	"github.com/brasilcart/storefront-backend/internal/inventory"
	"github.com/brasilcart/storefront-backend/internal/orders"
	"github.com/brasilcart/storefront-backend/internal/payments"
	"github.com/brasilcart/storefront-backend/internal/reservation"
	"github.com/brasilcart/storefront-backend/pkg/config"
	"github.com/brasilcart/storefront-backend/pkg/db"
	"github.com/brasilcart/storefront-backend/pkg/logger"
	"github.com/brasilcart/storefront-backend/pkg/metrics"
	"github.com/brasilcart/storefront-backend/pkg/migrate"
	"github.com/brasilcart/storefront-backend/pkg/outbox"
	"github.com/brasilcart/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)

	inventoryRepo := inventory.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)

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

	ordersService, err := orders.NewService(orderRepo, inventoryRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	auditLogger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "cron-worker").Logger()
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

	sweepJob, err := cron.NewReservationSweepJob(cron.ReservationSweepJobParams{
		Logger:   logg,
		Sweeper:  reservationService,
		Interval: cfg.Reservation.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation sweep job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:         logg,
		Audit:          auditService,
		Outbox:         outboxRepo,
		AuditRetention: cfg.PaymentLog.Retention(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}

	pollJob, err := cron.NewPaymentPollJob(cron.PaymentPollJobParams{
		Logger: logg,
		Poller: paymentsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment poll job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	registry := cron.NewRegistry(sweepJob, retentionJob, pollJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    registry,
		LockFactory: cron.NewRedisLockFactory(redisClient, redisClient.LockKey),
		Metrics:     metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
