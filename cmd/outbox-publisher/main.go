package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg, logg := p.Config, p.Logger

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RolePublisher, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	p.OnClose("pubsub", pubsubClient.Close)

	router, err := registry.NewRouter(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("topic router: %w", err)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Router:     router,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"batch_size":   service.batchSize,
		"max_attempts": service.maxAttempts,
		"interval_ms":  service.interval.Milliseconds(),
	}), "starting outbox publisher")
	return service.Run(ctx)
}
