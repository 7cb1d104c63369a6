package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

func TestProcessBatchRetriesOneRowAndPublishesTheNext(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		orderEvent(t, "1", 0),
		orderEvent(t, "2", 0),
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	observer := &fakeObserver{}
	service := newTestService(t, repo, pub, &fakeRouter{resolved: notificationResolved()}, nil)
	service.metrics = observer

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
	assert.Equal(t, []string{metrics.DeliveryRetry, metrics.DeliveryPublished}, observer.results)
	assert.Equal(t, 1, observer.batches)
}

func TestProcessBatchEmptyOutbox(t *testing.T) {
	observer := &fakeObserver{}
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRouter{resolved: notificationResolved()}, nil)
	service.metrics = observer

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Zero(t, observer.batches)
}

func TestPublishCarriesEnvelopeAndRoutingAttributes(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCatalogIngested,
		AggregateType: enums.AggregateShop,
		AggregateID:   "42",
		Payload:       mustEnvelopePayload(t, "ingested"),
		CreatedAt:     time.Now().UTC(),
	}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	resolved := &registry.Resolved{Topic: "catalog-topic", Payload: &payloads.CatalogIngestedEvent{}}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, pub, &fakeRouter{resolved: resolved}, nil)
	var topics []string
	service.publishers = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"catalog-topic"}, topics)
	require.Len(t, pub.sent, 1)
	msg := pub.sent[0]
	assert.Equal(t, []byte(event.Payload), msg.Data)
	assert.Equal(t, "42", msg.Attributes[outbox.AttrAggregateID])
	assert.Equal(t, string(enums.EventCatalogIngested), msg.Attributes[outbox.AttrEventType])
	assert.Equal(t, string(enums.AggregateShop), msg.Attributes[outbox.AttrAggregateType])
	assert.Equal(t, event.ID.String(), msg.Attributes[outbox.AttrEventID])
	assert.NotEmpty(t, msg.Attributes[outbox.AttrOccurredAt])
	assert.Equal(t, []uuid.UUID{event.ID}, repo.published)
}

func TestMissingPublisherDeadLetters(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventUserRegistered,
		AggregateType: enums.AggregateUser,
		AggregateID:   uuid.NewString(),
		Payload:       mustEnvelopePayload(t, "registered"),
	}
	resolved := &registry.Resolved{Topic: "missing-topic", Payload: &payloads.UserRegisteredEvent{}}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, nil, &fakeRouter{resolved: resolved}, nil)
	service.publishers = func(string) publisher { return nil }

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.dead, 1)
	assert.Equal(t, event.ID, repo.dead[0].id)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, repo.dead[0].reason)
}

func TestUndecodableRowDeadLetters(t *testing.T) {
	event := orderEvent(t, "3", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	router := &fakeRouter{err: registry.Permanent(errors.New("invalid payload"))}
	service := newTestService(t, repo, &fakePublisher{}, router, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	require.Len(t, repo.dead, 1)
	dead := repo.dead[0]
	assert.Equal(t, event.ID, dead.id)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dead.reason)
	assert.ErrorContains(t, dead.cause, "invalid payload")
	assert.Equal(t, 5, dead.parkAt)
}

func TestLastAttemptDeadLetters(t *testing.T) {
	event := orderEvent(t, "4", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	service := newTestService(t, repo, pub, &fakeRouter{resolved: notificationResolved()}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.dead, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, repo.dead[0].reason)
	assert.Equal(t, 2, repo.dead[0].parkAt)
	assert.Empty(t, repo.failed)
}

func TestIdleBackoff(t *testing.T) {
	b := newIdleBackoff(time.Second, 5*time.Second)

	first := b.failed()
	assert.GreaterOrEqual(t, first, 2*time.Second)
	assert.Less(t, first, 2*time.Second+maxJitter)

	b.failed()
	capped := b.failed()
	assert.GreaterOrEqual(t, capped, 5*time.Second)
	assert.Less(t, capped, 5*time.Second+maxJitter)

	b.reset()
	assert.Less(t, b.idle(), time.Second+maxJitter)
	assert.Zero(t, jitter(0))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	assert.ErrorContains(t, err, "logger")
}

func orderEvent(tb testing.TB, aggregateID string, attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderConfirmationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   aggregateID,
		Payload:       mustEnvelopePayload(tb, "order-"+aggregateID),
		AttemptCount:  attempts,
	}
}

func notificationResolved() *registry.Resolved {
	return &registry.Resolved{Topic: "notification-topic", Payload: &payloads.OrderConfirmationRequestedEvent{}}
}

type fakeObserver struct {
	results []string
	batches int
}

func (f *fakeObserver) ObserveDelivery(_ string, result string) {
	f.results = append(f.results, result)
}

func (f *fakeObserver) ObserveBatch(time.Duration) { f.batches++ }

func newTestService(t *testing.T, repo outboxRepository, pub publisher, router topicRouter, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Router:           router,
		PublisherFactory: func(_ string) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.Envelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type deadLetter struct {
	id     uuid.UUID
	reason enums.OutboxDLQErrorReason
	cause  error
	parkAt int
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	dead      []deadLetter
}

func (f *fakeRepo) Claim(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(_ *gorm.DB, id uuid.UUID, _ time.Time) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) RecordFailure(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) DeadLetter(_ *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, parkAt int) error {
	f.dead = append(f.dead, deadLetter{id: row.ID, reason: reason, cause: cause, parkAt: parkAt})
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRouter struct {
	resolved *registry.Resolved
	err      error
}

func (f *fakeRouter) Resolve(event models.OutboxEvent) (*registry.Resolved, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}
