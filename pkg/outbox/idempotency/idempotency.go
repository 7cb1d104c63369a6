// Package idempotency stops a Pub/Sub consumer from acting twice on the same
// outbox event when the message is redelivered.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

// Guard claims event ids for one consumer. Keys look like
// mp:idempotency:evt:<consumer>:<event_id>.
type Guard struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
}

func NewGuard(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Guard, error) {
	consumer = strings.TrimSpace(consumer)
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl}, nil
}

// Claim reports whether this call is the first to see eventID. A false
// result means another delivery already handled (or is handling) it.
func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return g.store.SetNX(ctx, g.key(eventID), time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Release forgets a claim so a redelivery can try again.
func (g *Guard) Release(ctx context.Context, eventID uuid.UUID) error {
	return g.store.Del(ctx, g.key(eventID))
}

func (g *Guard) key(eventID uuid.UUID) string {
	return g.store.IdempotencyKey("evt:"+g.consumer, eventID.String())
}
