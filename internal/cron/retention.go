package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	defaultOutboxRetention  = 30 * 24 * time.Hour
	defaultStaleBasketTTL   = 30 * 24 * time.Hour
	defaultStaleBasketBatch = 500
	maxStaleBasketBatches   = 20
)

// purgeFunc deletes rows older than cutoff and reports how many went.
type purgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// retentionJob deletes everything older than now-window on each run.
type retentionJob struct {
	name   string
	noun   string
	logg   *logger.Logger
	window time.Duration
	purge  purgeFunc
	now    func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"job":     j.name,
		"cutoff":  cutoff,
		"deleted": deleted,
	}), j.noun+" cleanup complete")
	return nil
}

func newRetentionJob(name, noun string, logg *logger.Logger, window, fallback time.Duration, purge purgeFunc) (*retentionJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if window <= 0 {
		window = fallback
	}
	return &retentionJob{name: name, noun: noun, logg: logg, window: window, purge: purge, now: time.Now}, nil
}

type outboxRetentionRepo interface {
	PurgePublished(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	Retention  time.Duration
}

// NewOutboxRetentionJob drops published outbox rows. Unpublished and
// dead-lettered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	return newRetentionJob("outbox-retention", "outbox", params.Logger, params.Retention, defaultOutboxRetention,
		params.Repository.PurgePublished)
}

type staleBasketRepo interface {
	DeleteStaleBaskets(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type StaleBasketJobParams struct {
	Logger     *logger.Logger
	Repository staleBasketRepo
	TTL        time.Duration
	BatchSize  int
}

// NewStaleBasketJob removes baskets nobody has touched within TTL. Each run
// deletes at most maxStaleBasketBatches batches.
func NewStaleBasketJob(params StaleBasketJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("orders repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultStaleBasketBatch
	}
	purge := func(ctx context.Context, cutoff time.Time) (int64, error) {
		var total int64
		for range maxStaleBasketBatches {
			n, err := params.Repository.DeleteStaleBaskets(ctx, cutoff, batch)
			total += n
			if err != nil {
				return total, err
			}
			if n < int64(batch) {
				break
			}
		}
		return total, nil
	}
	return newRetentionJob("stale-baskets", "stale basket", params.Logger, params.TTL, defaultStaleBasketTTL, purge)
}
