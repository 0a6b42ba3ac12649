package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/garnizeh/prep/internal/auth"
)

var (
	tokenUser     string
	tokenFeatures []string
	tokenTTL      time.Duration
)

// tokenCmd signs a bearer token with the server secret, for local testing
// without the identity provider.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(false)
		if err != nil {
			return err
		}
		if tokenTTL <= 0 {
			tokenTTL = cfg.TokenDuration
		}
		tok, err := auth.IssueToken(cfg.JWTSecret, tokenUser, tokenFeatures, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (token subject)")
	tokenCmd.Flags().StringSliceVar(&tokenFeatures, "feature", nil, "plan feature to grant, repeatable (e.g. unlimited_questions)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: token_duration from config)")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
