package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	maxIdleBackoff      = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, parkAt int) error
}

type topicRouter interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type deliveryObserver interface {
	ObserveDelivery(eventType, result string)
	ObserveBatch(time.Duration)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Router           topicRouter
	PublisherFactory publisherFactory
	Metrics          deliveryObserver
}

// Service drains the outbox table onto Pub/Sub. Each batch is claimed and
// settled inside one transaction so two publishers never send the same row.
type Service struct {
	logg       *logger.Logger
	db         dbClient
	pubsub     pubSubClient
	repo       outboxRepository
	router     topicRouter
	publishers publisherFactory
	metrics    deliveryObserver

	batchSize   int
	maxAttempts int
	interval    time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		ok   bool
		name string
	}{
		{params.Config != nil, "config"},
		{params.Logger != nil, "logger"},
		{params.DB != nil, "database client"},
		{params.PubSub != nil, "pubsub client"},
		{params.Repository != nil, "outbox repository"},
		{params.Router != nil, "topic router"},
	}
	for _, r := range required {
		if !r.ok {
			return nil, fmt.Errorf("%s is required", r.name)
		}
	}

	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		repo:        params.Repository,
		router:      params.Router,
		publishers:  params.PublisherFactory,
		metrics:     params.Metrics,
		batchSize:   orDefault(params.Config.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(params.Config.Outbox.MaxAttempts, defaultMaxAttempts),
		interval:    defaultPollInterval,
	}
	if ms := params.Config.Outbox.PollIntervalMS; ms > 0 {
		s.interval = time.Duration(ms) * time.Millisecond
	}
	if s.publishers == nil {
		s.publishers = s.topicPublisher
	}
	return s, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run polls until ctx is canceled. Full batches are followed immediately by
// the next claim; empty polls and errors back off with jitter.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := newIdleBackoff(s.interval, maxIdleBackoff)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			err = sleepCtx(ctx, wait.failed())
		case processed:
			wait.reset()
			continue
		default:
			wait.reset()
			err = sleepCtx(ctx, wait.idle())
		}
		if err != nil {
			return err
		}
	}
}

// delivery is the outcome of one publish attempt.
type delivery struct {
	result string
	reason enums.OutboxDLQErrorReason
	topic  string
	err    error
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.Claim(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		claimed = len(events)
		for _, event := range events {
			d := s.deliver(ctx, event)
			if err := s.settle(ctx, tx, event, d); err != nil {
				return err
			}
			if s.metrics != nil {
				s.metrics.ObserveDelivery(string(event.EventType), d.result)
			}
		}
		return nil
	})
	if claimed > 0 && s.metrics != nil {
		s.metrics.ObserveBatch(time.Since(started))
	}
	return claimed > 0, err
}

func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := s.router.Resolve(event)
	if err != nil {
		return delivery{result: metrics.DeliveryDeadLettered, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	topic := resolved.Topic

	err = s.publish(ctx, event, resolved)
	switch {
	case err == nil:
		return delivery{result: metrics.DeliveryPublished, topic: topic}
	case registry.IsPermanent(err):
		return delivery{result: metrics.DeliveryDeadLettered, reason: enums.OutboxDLQReasonNonRetryable, topic: topic, err: err}
	case event.AttemptCount+1 >= s.maxAttempts:
		return delivery{
			result: metrics.DeliveryDeadLettered,
			reason: enums.OutboxDLQReasonMaxAttempts,
			topic:  topic,
			err:    fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err),
		}
	default:
		return delivery{result: metrics.DeliveryRetry, topic: topic, err: err}
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, d delivery) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"attempt":        event.AttemptCount + 1,
		"topic":          d.topic,
		"result":         d.result,
	})

	switch d.result {
	case metrics.DeliveryPublished:
		if err := s.repo.MarkPublished(tx, event.ID, time.Now()); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(logCtx, "outbox event published")
	case metrics.DeliveryRetry:
		s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed, will retry")
		if err := s.repo.RecordFailure(tx, event.ID, d.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
	default:
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{"error": d.err.Error(), "reason": d.reason}), "outbox event dead-lettered")
		if err := s.repo.DeadLetter(tx, event, d.reason, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("dead-letter %s: %w", event.ID, err)
		}
	}
	return nil
}

// publish sends the stored envelope unchanged; routing metadata rides in attributes.
func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.Resolved) error {
	topic := resolved.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %q", topic))
	}

	attrs := map[string]string{
		outbox.AttrEventID:       resolved.Envelope.EventID,
		outbox.AttrEventType:     string(event.EventType),
		outbox.AttrAggregateType: string(event.AggregateType),
		outbox.AttrAggregateID:   event.AggregateID,
	}
	if !resolved.Envelope.OccurredAt.IsZero() {
		attrs[outbox.AttrOccurredAt] = resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{Data: event.Payload, Attributes: attrs})
	if result == nil {
		return registry.Permanent(fmt.Errorf("publisher for %q returned no result", topic))
	}
	_, err := result.Get(ctx)
	return err
}

func (s *Service) topicPublisher(topic string) publisher {
	p := s.pubsub.Publisher(topic)
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

// idleBackoff doubles the wait after each failed batch up to max.
type idleBackoff struct {
	base, max, current time.Duration
}

func newIdleBackoff(base, max time.Duration) *idleBackoff {
	return &idleBackoff{base: base, max: max, current: base}
}

func (b *idleBackoff) reset() { b.current = b.base }

func (b *idleBackoff) idle() time.Duration { return jitter(b.base) }

func (b *idleBackoff) failed() time.Duration {
	b.current = min(b.current*2, b.max)
	return jitter(b.current)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(maxJitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
