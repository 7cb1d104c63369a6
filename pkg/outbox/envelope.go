// Package outbox records domain events in the same transaction as the state
// change that caused them. cmd/outbox-publisher later relays each row to Pub/Sub.
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written on every new row. Readers treat a missing
// version as 1.
const EnvelopeVersion = 1

// Pub/Sub attribute keys set by the publisher so subscribers can route
// without decoding the body.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrOccurredAt    = "occurred_at"
)

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// Envelope is the JSON document stored in outbox_events.payload and sent
// unchanged as the Pub/Sub message body.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a message body and checks the fields consumers rely on.
func ParseEnvelope(body []byte) (Envelope, uuid.UUID, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return Envelope{}, uuid.Nil, fmt.Errorf("envelope event id: %w", err)
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return Envelope{}, uuid.Nil, errors.New("envelope has no data")
	}
	return env, id, nil
}
