package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const defaultHeartbeat = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

// consumer blocks until ctx ends or its subscription fails.
type consumer interface {
	Run(context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies map[string]pinger
	Consumers    map[string]consumer
	Heartbeat    time.Duration
}

// Service checks its dependencies once, then runs every consumer until the
// first one fails or ctx is canceled.
type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	consumers map[string]consumer
	heartbeat time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %q is nil", name)
		}
	}
	heartbeat := params.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		consumers: params.Consumers,
		heartbeat: heartbeat,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range sortedKeys(s.consumers) {
		c := s.consumers[name]
		cctx := s.logg.WithField(gctx, "consumer", name)
		g.Go(func() error {
			s.logg.Info(cctx, "consumer started")
			if err := c.Run(cctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consumer %s: %w", name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.logg.Debug(gctx, "worker.heartbeat")
			}
		}
	})

	err := g.Wait()
	if err == nil {
		// Consumers only return cleanly once the parent context is done.
		err = ctx.Err()
	}
	return err
}

func (s *Service) ready(ctx context.Context) error {
	for _, name := range sortedKeys(s.deps) {
		if err := s.deps[name].Ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
