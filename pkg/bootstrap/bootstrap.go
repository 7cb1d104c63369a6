// Package bootstrap holds the start-up shared by the long-running binaries:
// .env loading, config, the leveled logger, a signal-bound context and
// ordered shutdown of the clients opened along the way.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/instance"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

// Process is one running binary.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Load reads .env when present, then the MARKETPLACE_* config.
func Load(kind string) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return &Process{Kind: kind, Logger: logg}, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = kind
	return &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}, nil
}

// Main runs fn under a context canceled by SIGINT or SIGTERM and exits
// non-zero when start-up or fn fails for a reason other than that signal.
func Main(kind string, fn func(ctx context.Context, p *Process) error) {
	p, err := Load(kind)
	if err != nil {
		p.Logger.Error(context.Background(), "failed to start", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": kind,
		"instance":    instance.GetID(),
	})
	code := p.exitCode(ctx, fn(ctx, p))
	stop()
	if err := p.Close(); err != nil {
		p.Logger.Error(ctx, "shutdown incomplete", err)
	}
	if code == 0 {
		p.Logger.Info(ctx, kind+" shut down")
	}
	os.Exit(code)
}

func (p *Process) exitCode(ctx context.Context, err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	p.Logger.Error(ctx, p.Kind+" stopped unexpectedly", err)
	return 1
}

// OnClose registers fn to run in Close. Later registrations close first.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close runs every registered closer once and reports all failures.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	return errs
}

// Database opens the configured database and applies dev migrations when
// MARKETPLACE_AUTO_MIGRATE is set.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	p.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	p.OnClose("redis", client.Close)
	return client, nil
}
