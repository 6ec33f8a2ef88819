package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on boot when running in dev with the
// auto-migrate flag set. SQLite databases are skipped; the SQL targets Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	if cfg.DB.IsSQLite() {
		logg.Warn(ctx, "migrate.autorun.skipped: sqlite driver")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "migrate.autorun.start")
	if err := Run(ctx, sqlDB, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	if version, err := goose.GetDBVersionContext(ctx, sqlDB); err == nil {
		ctx = logg.WithField(ctx, "schema_version", version)
	}
	logg.Info(ctx, "migrate.autorun.complete")
	return nil
}
