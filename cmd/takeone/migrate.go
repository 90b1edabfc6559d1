package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/LucasBuchC/takeone-ai/internal/config"
	"github.com/LucasBuchC/takeone-ai/internal/infra/db/postgres"
	"github.com/LucasBuchC/takeone-ai/internal/infra/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgPath, devMode)
		if err != nil {
			return err
		}
		if cfg.Database.Driver != "postgres" {
			return errors.New("migrate requires database.driver postgres")
		}
		logger := logging.New(cfg.Log, cfg.Runtime.Dev)

		pool, err := postgres.NewPgxPool(cmd.Context(), cfg.Database.URL, 2)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(cmd.Context(), pool); err != nil {
			return err
		}
		logger.Info().Msg("schema applied")
		return nil
	},
}
