package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brasilcart/storefront-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name     string
	interval time.Duration
	err      error
	runs     int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Interval() time.Duration { return t.interval }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestRunGuardedExecutesAndReleasesLock(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	service, err := NewService(ServiceParams{Logger: logg})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	job := &testJob{name: "sweep", interval: time.Minute}
	lock := &fakeLock{}
	service.runGuarded(context.Background(), job, lock)

	if job.runs != 1 {
		t.Fatalf("job ran %d times, want 1", job.runs)
	}
	if lock.acquires != 1 || lock.releases != 1 {
		t.Fatalf("lock acquires=%d releases=%d", lock.acquires, lock.releases)
	}
}

func TestRunGuardedSkipsWhenLockHeldElsewhere(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	service, err := NewService(ServiceParams{Logger: logg})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	job := &testJob{name: "sweep", interval: time.Minute}
	lock := &fakeLock{held: true}
	service.runGuarded(context.Background(), job, lock)

	if job.runs != 0 {
		t.Fatalf("job ran while lock was held elsewhere")
	}
	if lock.releases != 0 {
		t.Fatalf("released a lock it never acquired")
	}
}

func TestRunGuardedRecordsFailuresWithoutPanic(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	service, err := NewService(ServiceParams{Logger: logg})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	job := &testJob{name: "fail", interval: time.Minute, err: errors.New("boom")}
	service.runGuarded(context.Background(), job, nil)

	if job.runs != 1 {
		t.Fatalf("failing job ran %d times, want 1", job.runs)
	}
}

func TestRunSchedulesEveryJobUntilCanceled(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	first := &testJob{name: "first", interval: time.Hour}
	second := &testJob{name: "second", interval: time.Hour}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(first, second),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run returned %v", err)
	}

	// Each job gets its immediate startup run even though the hourly tick
	// never fires inside the test window.
	if first.runs != 1 || second.runs != 1 {
		t.Fatalf("startup runs = %d/%d, want 1/1", first.runs, second.runs)
	}
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &testJob{name: "only"})
	registry.Register(nil)
	if len(registry.Jobs()) != 1 {
		t.Fatalf("jobs = %d, want 1", len(registry.Jobs()))
	}
}
