package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/garnizeh/prep/api"
	"github.com/garnizeh/prep/internal/ai"
	"github.com/garnizeh/prep/internal/config"
	"github.com/garnizeh/prep/internal/logging"
	"github.com/garnizeh/prep/pkg/ollama"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "prep",
	Short: "Interview preparation API server",
	Long:  "prep serves the interview preparation API: job descriptions, AI questions and feedback, resume analysis and voice interviews.",
	// `prep` with no subcommand runs the server.
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("PREP_CONFIG"), "path to a YAML or TOML config file (default: PREP_CONFIG env var, then environment only)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// setup loads the configuration and installs the logger in every package
// that logs. validate is false for maintenance commands that do not need the
// AI provider settings.
func setup(validate bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ai.SetLogger(logger)
	ollama.SetLogger(logger)
	return cfg, logger, nil
}
