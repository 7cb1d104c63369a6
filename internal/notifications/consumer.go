// Package notifications mails customers and shop users about domain events
// delivered over Pub/Sub.
package notifications

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

// MailConsumer names this consumer in logs and idempotency keys.
const MailConsumer = "mail-notifications"

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type notifier interface {
	Notify(ctx context.Context, payload any) error
}

type claimer interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

// Consumer receives notification events and hands each event id to the
// notifier once.
type Consumer struct {
	subscription subscriber
	notifier     notifier
	guard        claimer
	logg         *logger.Logger
}

func NewConsumer(subscription subscriber, n notifier, guard claimer, logg *logger.Logger) (*Consumer, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("notification subscription required")
	case n == nil:
		return nil, errors.New("notifier required")
	case guard == nil:
		return nil, errors.New("idempotency guard required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{subscription: subscription, notifier: n, guard: guard, logg: logg}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg) == redeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome int

const (
	done outcome = iota
	redeliver
)

// handle never asks for redelivery of a message it cannot read; those would
// fail the same way forever.
func (c *Consumer) handle(ctx context.Context, msg *pubsub.Message) outcome {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	eventType, err := enums.ParseOutboxEventType(msg.Attributes[outbox.AttrEventType])
	if err != nil {
		c.logg.Warn(logCtx, "dropping message: "+err.Error())
		return done
	}
	logCtx = c.logg.WithField(logCtx, "event_type", eventType)
	if stream, _ := registry.StreamOf(eventType); stream != registry.StreamNotification {
		c.logg.Debug(logCtx, "not a notification event")
		return done
	}

	_, eventID, payload, err := registry.Decode(eventType, msg.Data)
	if err != nil {
		c.logg.Warn(logCtx, "dropping undecodable event: "+err.Error())
		return done
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	first, err := c.guard.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return redeliver
	}
	if !first {
		c.logg.Info(logCtx, "event already handled")
		return done
	}

	if err := c.notifier.Notify(logCtx, payload); err != nil {
		c.logg.Error(logCtx, "notification delivery failed", err)
		if err := c.guard.Release(ctx, eventID); err != nil {
			c.logg.Error(logCtx, "idempotency release failed", err)
		}
		return redeliver
	}
	c.logg.Info(logCtx, "notification sent")
	return done
}
