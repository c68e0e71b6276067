package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/brasilcart/storefront-backend/internal/payments"
	"github.com/brasilcart/storefront-backend/pkg/logger"
)

type pendingPoller interface {
	PollPending(ctx context.Context) (payments.PollResult, error)
}

// PaymentPollJobParams configure the pending-payment reconciler.
type PaymentPollJobParams struct {
	Logger   *logger.Logger
	Poller   pendingPoller
	Interval time.Duration
}

type paymentPollJob struct {
	logg     *logger.Logger
	poller   pendingPoller
	interval time.Duration
}

// NewPaymentPollJob builds the job that reconciles pix and bank slip
// payments with the gateway.
func NewPaymentPollJob(params PaymentPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Poller == nil {
		return nil, fmt.Errorf("pending poller required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &paymentPollJob{
		logg:     params.Logger,
		poller:   params.Poller,
		interval: interval,
	}, nil
}

func (j *paymentPollJob) Name() string { return "payment-poll" }

func (j *paymentPollJob) Interval() time.Duration { return j.interval }

func (j *paymentPollJob) Run(ctx context.Context) error {
	result, err := j.poller.PollPending(ctx)
	if err != nil {
		return fmt.Errorf("poll pending payments: %w", err)
	}
	if result.Checked > 0 || result.Expired > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"checked": result.Checked,
			"settled": result.Settled,
			"expired": result.Expired,
			"failed":  result.Failed,
		})
		j.logg.Info(logCtx, "pending payments reconciled")
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d pending payments failed to reconcile", result.Failed)
	}
	return nil
}
