package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/brasilcart/storefront-backend/pkg/logger"
)

const sweepBatchSize = 500

type reservationSweeper interface {
	SweepExpired(ctx context.Context, batchSize int) (int, error)
}

// ReservationSweepJobParams configure the expired-hold sweeper.
type ReservationSweepJobParams struct {
	Logger   *logger.Logger
	Sweeper  reservationSweeper
	Interval time.Duration
}

type reservationSweepJob struct {
	logg     *logger.Logger
	sweeper  reservationSweeper
	interval time.Duration
}

// NewReservationSweepJob builds the job that releases lapsed stock holds.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("reservation sweeper required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &reservationSweepJob{
		logg:     params.Logger,
		sweeper:  params.Sweeper,
		interval: interval,
	}, nil
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Interval() time.Duration { return j.interval }

// Run drains expired holds in batches until a sweep comes back empty.
func (j *reservationSweepJob) Run(ctx context.Context) error {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		released, err := j.sweeper.SweepExpired(ctx, sweepBatchSize)
		if err != nil {
			return fmt.Errorf("sweep expired reservations: %w", err)
		}
		total += released
		if released < sweepBatchSize {
			break
		}
	}
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "released", total), "expired reservations released")
	}
	return nil
}
