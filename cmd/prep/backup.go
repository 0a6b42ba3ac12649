package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/garnizeh/prep/internal/db"
)

var (
	backupOut string
	restoreIn string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent copy of the SQLite database",
	Long:  "Write a consistent copy of the SQLite database with VACUUM INTO. Postgres deployments should use pg_dump.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(false)
		if err != nil {
			return err
		}
		if cfg.Database.Driver != db.DriverSQLite {
			return errors.New("backup supports sqlite only; use pg_dump for postgres")
		}
		dst := backupOut
		if dst == "" {
			dst = fmt.Sprintf("%s.%s.bak", cfg.Database.DSN, time.Now().UTC().Format("20060102T150405"))
		}
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("backup target %s already exists", dst)
		}

		database, err := db.New(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		if _, err := database.Exec(cmd.Context(), `VACUUM INTO ?`, dst); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		logger.Info("database backup completed", "path", dst)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the SQLite database with a backup",
	Long:  "Replace the SQLite database file with a backup. Stop the server first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(false)
		if err != nil {
			return err
		}
		if cfg.Database.Driver != db.DriverSQLite {
			return errors.New("restore supports sqlite only")
		}
		if restoreIn == "" {
			return errors.New("--from is required")
		}
		if err := copyFile(restoreIn, cfg.Database.DSN); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		logger.Info("database restore completed", "from", restoreIn, "to", cfg.Database.DSN)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupOut, "out", "o", "", "backup file (default: <dsn>.<timestamp>.bak)")
	restoreCmd.Flags().StringVar(&restoreIn, "from", "", "backup file to restore")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}

// copyFile writes src over dst through a temporary file so a failed copy
// leaves dst untouched.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".restore"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
