package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	pgstore "github.com/tinoosan/billy/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the PostgreSQL schema",
	}
	for _, dir := range []pgstore.Direction{pgstore.Up, pgstore.Down} {
		dir := dir
		cmd.AddCommand(&cobra.Command{
			Use:   string(dir),
			Short: fmt.Sprintf("Migrate the schema %s", dir),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				if cfg.DatabaseURL == "" {
					return errors.New("DATABASE_URL is required")
				}
				version, err := pgstore.Migrate(cfg.DatabaseURL, dir)
				if err != nil {
					return err
				}
				logger.Info("migrations applied", "direction", string(dir), "schema_version", version)
				return nil
			},
		})
	}
	return cmd
}
