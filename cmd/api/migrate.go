package main

import (
	"fmt"

	"github.com/eskrenkovic/session-ledger/internal/config"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/postgres"
	sqlmigration "github.com/eskrenkovic/session-ledger/internal/sql-migrations"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending postgres migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(globalFlags.configFile)
			if err != nil {
				return err
			}
			defer func() { _ = cfg.Logger.Sync() }()

			if cfg.StorageBackend != config.StorageBackendPostgres {
				return fmt.Errorf("migrate requires the %s backend, got %s",
					config.StorageBackendPostgres, cfg.StorageBackend)
			}

			store, err := postgres.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := sqlmigration.Run(cmd.Context(), store.DB(), sqlmigration.Ledger())
			if err != nil {
				return err
			}

			cfg.Logger.Info("migrations applied", zap.Int("count", applied))
			return nil
		},
	}
}
