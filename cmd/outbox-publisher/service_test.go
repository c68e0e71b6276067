package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/enums"
	"github.com/brasilcart/storefront-backend/pkg/logger"
)

type fakeOutboxRepo struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    map[uuid.UUID]error
	fetchErr  error
}

func (f *fakeOutboxRepo) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	if f.failed == nil {
		f.failed = map[uuid.UUID]error{}
	}
	f.failed[id] = err
	return nil
}

type publishedMessage struct {
	channel string
	payload []byte
}

type fakeSink struct {
	messages []publishedMessage
	err      error
}

func (f *fakeSink) Publish(_ context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{channel: channel, payload: payload})
	return nil
}

type staticChannels struct{}

func (staticChannels) ChannelKey(name string) string { return "sf:events:" + name }

func newTestService(t *testing.T, repo *fakeOutboxRepo, s *fakeSink) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: repo,
		Sink:       s,
		Channels:   staticChannels{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func outboxRow(eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"order_id":"x"}`),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestDrainOncePublishesAndMarks(t *testing.T) {
	repo := &fakeOutboxRepo{rows: []models.OutboxEvent{
		outboxRow(enums.EventOrderCreated, enums.AggregateOrder),
		outboxRow(enums.EventPaymentApproved, enums.AggregatePayment),
	}}
	sink := &fakeSink{}
	svc := newTestService(t, repo, sink)

	count, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 published, got %d", count)
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 marked published, got %d", len(repo.published))
	}
	if len(sink.messages) != 2 {
		t.Fatalf("expected 2 sink messages, got %d", len(sink.messages))
	}
	if sink.messages[0].channel != "sf:events:order" {
		t.Fatalf("unexpected channel %q", sink.messages[0].channel)
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(sink.messages[0].payload, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.ID != repo.rows[0].ID {
		t.Fatalf("envelope id mismatch: %s vs %s", envelope.ID, repo.rows[0].ID)
	}
	if envelope.EventType != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event type %q", envelope.EventType)
	}
}

func TestDrainOnceMarksFailedOnSinkError(t *testing.T) {
	row := outboxRow(enums.EventOrderCreated, enums.AggregateOrder)
	repo := &fakeOutboxRepo{rows: []models.OutboxEvent{row}}
	sink := &fakeSink{err: errors.New("broker down")}
	svc := newTestService(t, repo, sink)

	count, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 published, got %d", count)
	}
	if len(repo.published) != 0 {
		t.Fatalf("nothing should be marked published")
	}
	if repo.failed[row.ID] == nil {
		t.Fatalf("expected failure recorded for %s", row.ID)
	}
}

func TestDrainOnceSkipsExhaustedEvents(t *testing.T) {
	exhausted := outboxRow(enums.EventOrderCreated, enums.AggregateOrder)
	exhausted.AttemptCount = defaultMaxAttempts
	fresh := outboxRow(enums.EventPaymentApproved, enums.AggregatePayment)
	repo := &fakeOutboxRepo{rows: []models.OutboxEvent{exhausted, fresh}}
	sink := &fakeSink{}
	svc := newTestService(t, repo, sink)

	count, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the fresh event, got %d", count)
	}
	if len(repo.published) != 1 || repo.published[0] != fresh.ID {
		t.Fatalf("expected only %s marked published", fresh.ID)
	}
}

func TestDrainOncePropagatesFetchError(t *testing.T) {
	repo := &fakeOutboxRepo{fetchErr: errors.New("db gone")}
	svc := newTestService(t, repo, &fakeSink{})

	if _, err := svc.drainOnce(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}
