package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/internal/cron"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

var (
	once = flag.Bool("once", false, "run a single locked cycle and exit")
	only = flag.String("jobs", "", "comma separated job names to run (default all)")
)

func main() {
	flag.Parse()
	bootstrap.Main("cron-worker", run)
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

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockEnv(cfg.App.Env)), 0)
	if err != nil {
		return err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return err
	}
	basketJob, err := cron.NewStaleBasketJob(cron.StaleBasketJobParams{
		Logger:     logg,
		Repository: orders.NewRepository(dbClient.DB()),
		TTL:        cfg.Cron.StaleBasketTTL,
		BatchSize:  cfg.Cron.StaleBasketBatch,
	})
	if err != nil {
		return err
	}

	registry, err := cron.NewRegistry(outboxJob, basketJob)
	if err == nil {
		registry, err = registry.Only(splitJobs(*only)...)
	}
	if err != nil {
		return fmt.Errorf("job registry: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Cron.Schedule,
	})
	if err != nil {
		return err
	}

	if *once {
		report, err := service.RunOnce(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"skipped": report.Skipped,
			"ran":     report.Ran,
			"failed":  report.Failed,
		}), "cron cycle finished")
		if len(report.Failed) > 0 {
			return fmt.Errorf("jobs failed: %s", strings.Join(report.Failed, ", "))
		}
		return nil
	}

	logg.Info(logg.WithField(ctx, "schedule", cfg.Cron.Schedule), "starting cron worker")
	return service.Run(ctx)
}

func splitJobs(raw string) []string {
	var names []string
	for name := range strings.SplitSeq(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Replicas in different environments may share one redis.
func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
