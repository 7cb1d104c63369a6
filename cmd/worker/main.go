package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/mailer"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg, logg := p.Config, p.Logger

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleConsumer, logg)
	if err != nil {
		return err
	}
	p.OnClose("pubsub", pubsubClient.Close)

	subscription := pubsubClient.NotificationSubscription()
	if subscription == nil {
		return errors.New(config.EnvPubSubNotificationSub + " is empty")
	}
	guard, err := idempotency.NewGuard(redisClient, notifications.MailConsumer, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	notifier, err := notifications.NewNotifier(users.NewRepository(dbClient.DB()), mailer.New(cfg.Mail, logg), cfg.Mail.BaseURL, logg)
	if err != nil {
		return err
	}
	mailConsumer, err := notifications.NewConsumer(subscription, notifier, guard, logg)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Consumers: map[string]consumer{notifications.MailConsumer: mailConsumer},
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "subscription", cfg.PubSub.NotificationSubscription), "starting worker")
	return service.Run(ctx)
}
