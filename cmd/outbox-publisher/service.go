package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brasilcart/storefront-backend/pkg/db/models"
	"github.com/brasilcart/storefront-backend/pkg/logger"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
)

type outboxRepository interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// sink delivers one serialized event to a downstream channel.
type sink interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type channelResolver interface {
	ChannelKey(name string) string
}

// eventEnvelope is the wire shape consumers subscribe to.
type eventEnvelope struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type ServiceParams struct {
	Logger       *logger.Logger
	Repository   outboxRepository
	Sink         sink
	Channels     channelResolver
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Service drains unpublished outbox rows into the sink, one channel per
// aggregate type. Rows that keep failing past MaxAttempts are left for the
// retention job and skipped here.
type Service struct {
	logg         *logger.Logger
	repo         outboxRepository
	sink         sink
	channels     channelResolver
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if params.Channels == nil {
		return nil, errors.New("channel resolver is required")
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pollInterval := params.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:         params.Logger,
		repo:         params.Repository,
		sink:         params.Sink,
		channels:     params.Channels,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}, nil
}

// Run polls until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.drainOnce(ctx); err != nil {
			s.logg.Error(ctx, "outbox drain failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drainOnce publishes at most one batch and reports how many events went out.
func (s *Service) drainOnce(ctx context.Context) (int, error) {
	rows, err := s.repo.FetchUnpublished(s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}

	published := 0
	for i := range rows {
		event := rows[i]
		if event.AttemptCount >= s.maxAttempts {
			continue
		}
		if err := s.publishOne(ctx, event); err != nil {
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				s.logg.Error(ctx, "mark outbox event failed", markErr)
			}
			continue
		}
		if err := s.repo.MarkPublished(event.ID); err != nil {
			// the event went out; the next cycle republishes, consumers
			// must dedupe on envelope id
			s.logg.Error(ctx, "mark outbox event published", err)
			continue
		}
		published++
	}
	return published, nil
}

func (s *Service) publishOne(ctx context.Context, event models.OutboxEvent) error {
	envelope := eventEnvelope{
		ID:            event.ID,
		EventType:     string(event.EventType),
		AggregateType: string(event.AggregateType),
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		OccurredAt:    event.CreatedAt,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	channel := s.channels.ChannelKey(string(event.AggregateType))
	if err := s.sink.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
