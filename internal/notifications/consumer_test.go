package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

type memoryIdempotencyStore struct {
	keys map[string]string
}

func (s *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	return s.keys[key], nil
}

func (s *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = value.(string)
	return true, nil
}

func (s *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "mp:idempotency:" + scope + ":" + id
}

type stubNotifier struct {
	calls []any
	err   error
}

func (n *stubNotifier) Notify(_ context.Context, payload any) error {
	n.calls = append(n.calls, payload)
	return n.err
}

type noopSubscriber struct{}

func (noopSubscriber) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

func newTestConsumer(t *testing.T, n notifier) (*Consumer, *memoryIdempotencyStore) {
	t.Helper()
	store := &memoryIdempotencyStore{keys: map[string]string{}}
	guard, err := idempotency.NewGuard(store, MailConsumer, time.Hour)
	require.NoError(t, err)
	consumer, err := NewConsumer(noopSubscriber{}, n, guard, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return consumer, store
}

func orderMessage(t *testing.T, eventID uuid.UUID) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payloads.OrderConfirmationRequestedEvent{UserID: uuid.New(), OrderID: 9, TotalSum: 700000})
	require.NoError(t, err)
	body, err := json.Marshal(outbox.Envelope{Version: 1, EventID: eventID.String(), OccurredAt: time.Now().UTC(), Data: data})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-1",
		Data:       body,
		Attributes: map[string]string{outbox.AttrEventType: string(enums.EventOrderConfirmationRequested)},
	}
}

func TestConsumerDeliversOncePerEvent(t *testing.T) {
	n := &stubNotifier{}
	consumer, _ := newTestConsumer(t, n)
	msg := orderMessage(t, uuid.New())

	assert.Equal(t, done, consumer.handle(context.Background(), msg))
	assert.Equal(t, done, consumer.handle(context.Background(), msg))

	require.Len(t, n.calls, 1)
	event, ok := n.calls[0].(*payloads.OrderConfirmationRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(700000), event.TotalSum)
}

func TestConsumerNacksAndReleasesKeyOnFailure(t *testing.T) {
	n := &stubNotifier{err: errors.New("smtp down")}
	consumer, store := newTestConsumer(t, n)
	msg := orderMessage(t, uuid.New())

	assert.Equal(t, redeliver, consumer.handle(context.Background(), msg))
	assert.Empty(t, store.keys)

	n.err = nil
	assert.Equal(t, done, consumer.handle(context.Background(), msg))
	assert.Len(t, n.calls, 2)
}

func TestConsumerAcksUndecodableMessages(t *testing.T) {
	n := &stubNotifier{}
	consumer, store := newTestConsumer(t, n)

	bad := &pubsub.Message{ID: "bad", Data: []byte("{not json"), Attributes: map[string]string{"event_type": "order_confirmation_requested"}}
	assert.Equal(t, done, consumer.handle(context.Background(), bad))

	catalog := orderMessage(t, uuid.New())
	catalog.Attributes[outbox.AttrEventType] = string(enums.EventCatalogIngested)
	assert.Equal(t, done, consumer.handle(context.Background(), catalog))

	unknown := orderMessage(t, uuid.New())
	unknown.Attributes[outbox.AttrEventType] = "reservation_released"
	assert.Equal(t, done, consumer.handle(context.Background(), unknown))

	assert.Empty(t, n.calls)
	assert.Empty(t, store.keys)
}

func TestConsumerRedeliversWhenClaimFails(t *testing.T) {
	n := &stubNotifier{}
	consumer, _ := newTestConsumer(t, n)
	consumer.guard = failingGuard{}

	assert.Equal(t, redeliver, consumer.handle(context.Background(), orderMessage(t, uuid.New())))
	assert.Empty(t, n.calls)
}

type failingGuard struct{}

func (failingGuard) Claim(context.Context, uuid.UUID) (bool, error) {
	return false, errors.New("redis down")
}
func (failingGuard) Release(context.Context, uuid.UUID) error { return nil }
