package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/garnizeh/prep/pkg/ollama"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the configured Ollama instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(false)
		if err != nil {
			return err
		}
		oc := ollama.DefaultConfig()
		if cfg.Ollama.BaseURL != "" {
			oc.BaseURL = cfg.Ollama.BaseURL
		}

		client, err := ollama.NewDefaultClient(oc)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		names, err := client.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		for _, n := range names {
			marker := " "
			if n == cfg.AI.Model {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
