package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot when running in dev
// with the auto-migrate flag on. SQLite databases are built from the gorm
// models instead and are skipped.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case !cfg.App.IsDev(), !cfg.FeatureFlags.AutoMigrate:
		return nil
	case db.IsSQLite(cfg.DB):
		logg.Warn(ctx, "auto-migrate skipped for sqlite")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, fsys)
	if err != nil {
		return err
	}
	// Closing the provider would close the shared pool.
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"applied": applied, "env": cfg.App.Env}), "auto-migrate finished")
	return nil
}
