package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dbfs "github.com/garnizeh/prep/db"
	"github.com/garnizeh/prep/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(false)
		if err != nil {
			return err
		}
		database, err := db.New(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		if err := db.Migrate(cmd.Context(), database, dbfs.Migrations); err != nil {
			return err
		}
		logger.Info("database migrated", "driver", database.Driver())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
