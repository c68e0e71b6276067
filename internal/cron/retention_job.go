package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/brasilcart/storefront-backend/pkg/logger"
)

type auditPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type outboxTrimmer interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the storage retention job.
type RetentionJobParams struct {
	Logger          *logger.Logger
	Audit           auditPruner
	Outbox          outboxTrimmer
	AuditRetention  time.Duration
	OutboxRetention time.Duration
	Interval        time.Duration
}

type retentionJob struct {
	logg            *logger.Logger
	audit           auditPruner
	outbox          outboxTrimmer
	auditRetention  time.Duration
	outboxRetention time.Duration
	interval        time.Duration
	now             func() time.Time
}

// NewRetentionJob builds the job that trims aged payment log entries and
// published outbox events.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit pruner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox trimmer required")
	}
	auditRetention := params.AuditRetention
	if auditRetention <= 0 {
		auditRetention = 90 * 24 * time.Hour
	}
	outboxRetention := params.OutboxRetention
	if outboxRetention <= 0 {
		outboxRetention = 7 * 24 * time.Hour
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &retentionJob{
		logg:            params.Logger,
		audit:           params.Audit,
		outbox:          params.Outbox,
		auditRetention:  auditRetention,
		outboxRetention: outboxRetention,
		interval:        interval,
		now:             time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return "storage-retention" }

func (j *retentionJob) Interval() time.Duration { return j.interval }

// Run trims both stores. One failing store does not stop the other; errors
// are combined so the run is still reported as failed.
func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now()
	var errs []error

	pruned, err := j.audit.Prune(ctx, now.Add(-j.auditRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("prune payment log: %w", err))
	} else if pruned > 0 {
		j.logg.Info(j.logg.WithField(ctx, "pruned", pruned), "payment log entries pruned")
	}

	trimmed, err := j.outbox.DeletePublishedBefore(ctx, now.Add(-j.outboxRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("trim outbox: %w", err))
	} else if trimmed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "trimmed", trimmed), "published outbox events trimmed")
	}

	return multierr.Combine(errs...)
}
