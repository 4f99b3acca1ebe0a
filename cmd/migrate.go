package cmd

import (
	"fmt"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/database"
)

// runMigrate applies pending database migrations and exits.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger()
	logger.Info("applying migrations", "database", cfg.PostgresDBName)

	if err = database.Migrate(cfg.MigrateURL()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
