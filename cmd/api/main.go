package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/api/routes"
	"github.com/angelmondragon/marketplace-backend/internal/auth"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/internal/ingestion"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/env"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
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
	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}
	services, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	// PORT wins so the platform can assign one.
	addr := ":" + env.First(cfg.App.Port, "PORT")
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", addr), "starting api server")
		served <- server.ListenAndServe()
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, sessions *session.Manager) (routes.Services, error) {
	conn := dbClient.DB()
	events := outbox.NewEmitter(outbox.NewRepository(conn), logg)
	userRepo := users.NewRepository(conn)

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}
	accountSvc, err := auth.NewAccountService(auth.AccountServiceParams{
		DB:             dbClient,
		Tokens:         redisClient,
		Outbox:         events,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	contactsSvc, err := contacts.NewService(contacts.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(conn),
		TX:     dbClient,
		Outbox: events,
		Logger: logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	ingestionSvc, err := ingestion.NewService(ingestion.ServiceParams{
		Repo:    ingestion.NewRepository(conn),
		TX:      dbClient,
		Fetcher: ingestion.NewHTTPFetcher(cfg.Ingestion),
		Outbox:  events,
		Metrics: metrics.NewIngestionMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:      authSvc,
		Accounts:  accountSvc,
		Contacts:  contactsSvc,
		Catalog:   catalogSvc,
		Ingestion: ingestionSvc,
		Orders:    ordersSvc,
	}, nil
}
