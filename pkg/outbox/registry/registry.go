// Package registry knows, per event type, which aggregate emits it, which
// topic carries it and which payload struct decodes it. The publisher uses
// Router to pick a topic; consumers use Decode to read message bodies.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// Stream is a logical destination; Router maps it to a configured topic.
type Stream string

const (
	StreamNotification Stream = "notification"
	StreamCatalog      Stream = "catalog"
)

type eventSpec struct {
	aggregate enums.OutboxAggregateType
	stream    Stream
	payload   func() any
}

var specs = map[enums.OutboxEventType]eventSpec{
	enums.EventOrderConfirmationRequested: {enums.AggregateOrder, StreamNotification, func() any { return &payloads.OrderConfirmationRequestedEvent{} }},
	enums.EventOrderStateChanged:          {enums.AggregateOrder, StreamNotification, func() any { return &payloads.OrderStateChangedEvent{} }},
	enums.EventUserRegistered:             {enums.AggregateUser, StreamNotification, func() any { return &payloads.UserRegisteredEvent{} }},
	enums.EventPasswordResetRequested:     {enums.AggregateUser, StreamNotification, func() any { return &payloads.PasswordResetRequestedEvent{} }},
	enums.EventCatalogIngested:            {enums.AggregateShop, StreamCatalog, func() any { return &payloads.CatalogIngestedEvent{} }},
}

// StreamOf reports where eventType is delivered.
func StreamOf(eventType enums.OutboxEventType) (Stream, bool) {
	s, ok := specs[eventType]
	return s.stream, ok
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as one that no retry can fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Decode parses a message body published for eventType and returns the
// envelope, its event id and a pointer to the typed payload.
func Decode(eventType enums.OutboxEventType, body []byte) (outbox.Envelope, uuid.UUID, any, error) {
	spec, ok := specs[eventType]
	if !ok {
		return outbox.Envelope{}, uuid.Nil, nil, Permanent(fmt.Errorf("unsupported event type %q", eventType))
	}
	env, id, err := outbox.ParseEnvelope(body)
	if err != nil {
		return outbox.Envelope{}, uuid.Nil, nil, Permanent(err)
	}
	if env.Version != outbox.EnvelopeVersion {
		return outbox.Envelope{}, uuid.Nil, nil, Permanent(fmt.Errorf("%s: unsupported envelope version %d", eventType, env.Version))
	}
	payload := spec.payload()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return outbox.Envelope{}, uuid.Nil, nil, Permanent(fmt.Errorf("decode %s payload: %w", eventType, err))
	}
	return env, id, payload, nil
}

// Resolved is an outbox row ready to publish.
type Resolved struct {
	Topic    string
	Envelope outbox.Envelope
	Payload  any
}

// Router resolves outbox rows to Pub/Sub topics.
type Router struct {
	topics map[Stream]string
}

func NewRouter(cfg config.PubSubConfig) (*Router, error) {
	topics := map[Stream]string{
		StreamNotification: strings.TrimSpace(cfg.NotificationTopic),
		StreamCatalog:      strings.TrimSpace(cfg.CatalogTopic),
	}
	for stream, topic := range topics {
		if topic == "" {
			return nil, fmt.Errorf("%s topic is required", stream)
		}
	}
	return &Router{topics: topics}, nil
}

// Resolve checks the row against its event type and decodes the payload.
// Every error it returns is permanent.
func (r *Router) Resolve(row models.OutboxEvent) (*Resolved, error) {
	spec, ok := specs[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if spec.aggregate != row.AggregateType {
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", row.EventType, spec.aggregate, row.AggregateType))
	}
	if strings.TrimSpace(row.AggregateID) == "" {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}
	env, _, payload, err := Decode(row.EventType, row.Payload)
	if err != nil {
		return nil, err
	}
	return &Resolved{Topic: r.topics[spec.stream], Envelope: env, Payload: payload}, nil
}
