package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	dbfs "github.com/garnizeh/prep/db"
	"github.com/garnizeh/prep/api"
	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/internal/ai"
	"github.com/garnizeh/prep/internal/cache"
	"github.com/garnizeh/prep/internal/config"
	"github.com/garnizeh/prep/internal/db"
	"github.com/garnizeh/prep/internal/metrics"
	"github.com/garnizeh/prep/internal/permissions"
	"github.com/garnizeh/prep/internal/ratelimit"
	"github.com/garnizeh/prep/internal/repository/sqlstore"
	"github.com/garnizeh/prep/internal/voice"
	"github.com/garnizeh/prep/internal/webhook"
	"github.com/garnizeh/prep/pkg/ollama"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  "Start the HTTP API server; blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(true)
	if err != nil {
		return err
	}
	logger.Info("starting prep", slog.String("version", version), slog.String("build_time", buildTime), slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.New(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Warn("close database", slog.Any("err", err))
		}
	}()
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	m := metrics.New()
	repo := sqlstore.New(database, logger)
	c, err := cache.New(cache.Config{MaxEntries: cfg.Cache.MaxEntries, TTL: cfg.Cache.TTL, Metrics: m})
	if err != nil {
		return err
	}
	defer c.Close()
	layer := access.New(repo, c)

	provider, closeProvider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	loader, err := ai.NewDefaultLoader()
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	engine, err := ai.NewEngine(provider, loader, ai.Config{Timeout: cfg.AI.Timeout, Metrics: m})
	if err != nil {
		return err
	}

	vc, err := voice.NewClient(voice.Config{
		BaseURL:   cfg.Voice.BaseURL,
		APIKey:    cfg.Voice.APIKey,
		SecretKey: cfg.Voice.SecretKey,
		ConfigID:  cfg.Voice.ConfigID,
	}, nil)
	if err != nil {
		return err
	}
	if cfg.Voice.APIKey == "" {
		logger.Warn("voice provider not configured; voice interviews are disabled")
	}

	var verifier *webhook.Verifier
	if cfg.Webhook.Secret != "" {
		if verifier, err = webhook.NewVerifier(cfg.Webhook.Secret); err != nil {
			return err
		}
	} else {
		logger.Warn("webhook secret not configured; identity webhooks will be rejected")
	}

	interviews, general := buildLimiters(cfg, repo, m)
	router := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Access:           layer,
		Permissions:      permissions.New(nil, layer),
		Engine:           engine,
		Voice:            vc,
		Webhook:          verifier,
		InterviewLimiter: interviews,
		GeneralLimiter:   general,
		Metrics:          m,
		Health:           database.GetConn().PingContext,
	})

	// Write deadlines cover whole SSE streams.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.StreamTimeout,
		WriteTimeout:      cfg.StreamTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// buildProvider returns the configured model provider and a func releasing
// its resources.
func buildProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ai.Provider, func(), error) {
	switch cfg.AI.Provider {
	case "openai":
		logger.Info("using openai compatible provider", slog.String("model", cfg.AI.Model))
		return ai.NewOpenAIProvider(cfg.AI.OpenAI.BaseURL, cfg.AI.OpenAI.APIKey, cfg.AI.Model, nil), func() {}, nil
	default:
		client, err := ollama.NewDefaultClient(ollama.Config{
			BaseURL:                 cfg.Ollama.BaseURL,
			Timeout:                 cfg.Ollama.Timeout,
			CircuitFailureThreshold: cfg.Ollama.CircuitFailureThreshold,
			CircuitReset:            cfg.Ollama.CircuitReset,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("ollama client: %w", err)
		}
		// A missing model is reported but does not block startup.
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Health(hctx); err != nil {
			logger.Warn("ollama not ready", slog.Any("err", err))
		}
		logger.Info("using ollama provider", slog.String("model", cfg.AI.Model), slog.String("base_url", cfg.Ollama.BaseURL))
		return ai.NewOllamaProvider(client, cfg.AI.Model), func() { _ = client.Close() }, nil
	}
}

// buildLimiters returns the interview token bucket and the general sliding
// window for the configured backend.
func buildLimiters(cfg *config.Config, repo *sqlstore.Repo, m *metrics.Metrics) (interviews, general ratelimit.Limiter) {
	bucket := ratelimit.TokenBucketPolicy{
		Capacity: cfg.RateLimit.InterviewCapacity,
		Refill:   cfg.RateLimit.InterviewRefill,
		Interval: cfg.RateLimit.InterviewInterval,
	}
	window := ratelimit.WindowPolicy{Limit: cfg.RateLimit.GeneralLimit, Window: cfg.RateLimit.GeneralWindow}

	switch cfg.RateLimit.Backend {
	case "memory":
		interviews = ratelimit.NewMemoryTokenBucket(bucket)
		general = ratelimit.NewMemorySlidingWindow(window)
	default:
		interviews = ratelimit.NewTokenBucket("interview", repo, bucket)
		general = ratelimit.NewSlidingWindow("general", repo, window)
	}
	return ratelimit.WithMetrics("interview", interviews, m), ratelimit.WithMetrics("general", general, m)
}
