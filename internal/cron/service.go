package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brasilcart/storefront-backend/pkg/logger"
	"github.com/brasilcart/storefront-backend/pkg/metrics"
)

const minInterval = time.Second

// LockFactory builds the distributed lock guarding one job. Passing nil to
// ServiceParams runs jobs unguarded, which is only sensible in tests and
// single-instance deployments.
type LockFactory func(jobName string, interval time.Duration) (Lock, error)

// NewRedisLockFactory guards each job with a Redis lock keyed by job name.
// The lock TTL tracks the job interval so a crashed worker's lock lapses
// before the next scheduled run goes stale.
func NewRedisLockFactory(client redisStore, keyFor func(name string) string) LockFactory {
	return func(jobName string, interval time.Duration) (Lock, error) {
		return NewRedisLock(client, keyFor(jobName), interval)
	}
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger      *logger.Logger
	Registry    *Registry
	LockFactory LockFactory
	Metrics     *metrics.CronJobMetrics
}

// Service executes registered jobs, each on its own cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.LockFactory,
		metrics:  params.Metrics,
	}, nil
}

// Run schedules every registered job until the context is canceled. Each job
// ticks on its own interval and runs once immediately on startup.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var wg sync.WaitGroup
	for _, job := range s.registry.Jobs() {
		lock, err := s.lockFor(job)
		if err != nil {
			return fmt.Errorf("build lock for %s: %w", job.Name(), err)
		}
		wg.Add(1)
		go func(job Job, lock Lock) {
			defer wg.Done()
			s.runLoop(ctx, job, lock)
		}(job, lock)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Service) lockFor(job Job) (Lock, error) {
	if s.locks == nil {
		return nil, nil
	}
	return s.locks(job.Name(), jobInterval(job))
}

func (s *Service) runLoop(ctx context.Context, job Job, lock Lock) {
	s.runGuarded(ctx, job, lock)

	ticker := time.NewTicker(jobInterval(job))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(s.logg.WithField(ctx, "job", job.Name()), "job loop stopped")
			return
		case <-ticker.C:
			s.runGuarded(ctx, job, lock)
		}
	}
}

func (s *Service) runGuarded(ctx context.Context, job Job, lock Lock) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	if lock != nil {
		locked, err := lock.Acquire(ctx)
		if err != nil {
			s.logg.Error(jobCtx, "lock acquire failed", err)
			s.recordFailure(job.Name())
			return
		}
		if !locked {
			s.logg.Info(jobCtx, "another worker holds the lock; skipping this run")
			return
		}
		defer func() {
			if relErr := lock.Release(ctx); relErr != nil {
				s.logg.Error(jobCtx, "failed to release job lock", relErr)
			}
		}()
	}

	s.runJob(jobCtx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) {
	s.logg.Info(ctx, "job start")
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	ctx = s.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		s.recordFailure(job.Name())
		return
	}
	s.logg.Info(ctx, "job completed")
	s.recordSuccess(job.Name())
}

func jobInterval(job Job) time.Duration {
	interval := job.Interval()
	if interval < minInterval {
		return minInterval
	}
	return interval
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}
