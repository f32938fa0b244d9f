package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	_ "github.com/kozaktomas/face-attendance/internal/database/mariadb"
	_ "github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

// openStore connects the configured backend and optionally applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (database.Store, error) {
	log := logger.Named("database")
	log.Info().Str("driver", cfg.Database.Driver).Msg("connecting to database")

	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return store, nil
}
