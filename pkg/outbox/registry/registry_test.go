package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

func newRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewRouter(config.PubSubConfig{NotificationTopic: "notification-topic", CatalogTopic: "catalog-topic"})
	require.NoError(t, err)
	return r
}

func envelope(t *testing.T, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.Envelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return body
}

func TestResolveDecodesPayloadAndPicksTopic(t *testing.T) {
	r := newRouter(t)
	userID := uuid.New()

	resolved, err := r.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderConfirmationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   "42",
		Payload:       envelope(t, payloads.OrderConfirmationRequestedEvent{UserID: userID, OrderID: 42, TotalSum: 700000}),
	})
	require.NoError(t, err)
	assert.Equal(t, "notification-topic", resolved.Topic)
	payload, ok := resolved.Payload.(*payloads.OrderConfirmationRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, userID, payload.UserID)
	assert.Equal(t, int64(700000), payload.TotalSum)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	resolved, err = r.Resolve(models.OutboxEvent{
		EventType:     enums.EventCatalogIngested,
		AggregateType: enums.AggregateShop,
		AggregateID:   "7",
		Payload:       envelope(t, payloads.CatalogIngestedEvent{ShopID: 7, ShopName: "Ozon"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "catalog-topic", resolved.Topic)
}

func TestResolveFailuresArePermanent(t *testing.T) {
	r := newRouter(t)
	cases := map[string]models.OutboxEvent{
		"unknown type": {EventType: "reservation_released", AggregateType: enums.AggregateOrder, AggregateID: "1", Payload: envelope(t, map[string]string{})},
		"wrong aggregate": {EventType: enums.EventUserRegistered, AggregateType: enums.AggregateOrder, AggregateID: "1",
			Payload: envelope(t, payloads.UserRegisteredEvent{Email: "a@example.com"})},
		"blank aggregate id": {EventType: enums.EventOrderStateChanged, AggregateType: enums.AggregateOrder, AggregateID: " ", Payload: envelope(t, map[string]string{})},
		"null data":          {EventType: enums.EventPasswordResetRequested, AggregateType: enums.AggregateUser, AggregateID: "u", Payload: envelope(t, nil)},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(row)
			require.Error(t, err)
			assert.True(t, IsPermanent(err))
		})
	}
}

func TestDecodeRejectsOtherVersions(t *testing.T) {
	body := []byte(`{"version":2,"eventId":"` + uuid.NewString() + `","data":{"order_id":9}}`)
	_, _, _, err := Decode(enums.EventOrderConfirmationRequested, body)
	assert.True(t, IsPermanent(err))
}

func TestStreamOf(t *testing.T) {
	s, ok := StreamOf(enums.EventCatalogIngested)
	require.True(t, ok)
	assert.Equal(t, StreamCatalog, s)
	_, ok = StreamOf("nope")
	assert.False(t, ok)
}

func TestNewRouterRequiresTopics(t *testing.T) {
	_, err := NewRouter(config.PubSubConfig{NotificationTopic: "n"})
	assert.ErrorContains(t, err, "catalog")
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("boom")
	err := Permanent(base)
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}
