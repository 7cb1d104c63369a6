package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// DomainEvent is what a service hands to Emit. Data is marshaled as the
// envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown aggregate type %q", e.AggregateType)
	case strings.TrimSpace(e.AggregateID) == "":
		return errors.New("aggregate id is required")
	case e.Data == nil:
		return errors.New("event data is required")
	}
	return nil
}

// Emitter appends events to the outbox inside a caller's transaction.
type Emitter struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewEmitter(repo *Repository, logg *logger.Logger) *Emitter {
	return &Emitter{repo: repo, logg: logg, now: time.Now}
}

// Emit stores event using tx, so it commits or rolls back with the caller's writes.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("outbox emit needs a transaction")
	}
	if err := event.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}

	now := e.now().UTC()
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	env := Envelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := e.repo.Insert(tx, models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       body,
		CreatedAt:     now,
	}); err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}

	if e.logg != nil && ctx != nil {
		e.logg.Debug(e.logg.WithFields(ctx, map[string]any{
			"event_id":     env.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID,
		}), "outbox event queued")
	}
	return nil
}
