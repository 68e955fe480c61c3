// docsinkd accepts structured log events over HTTP, batches them and ships
// them to a Postgres-backed document store through the bulk-import procedure.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborlog/docsink/internal/config"
	"github.com/harborlog/docsink/internal/database"
	"github.com/harborlog/docsink/internal/docstore/postgres"
	"github.com/harborlog/docsink/internal/observability"
	"github.com/harborlog/docsink/internal/server"
	"github.com/harborlog/docsink/internal/sink"
)

func main() {
	cfg := config.LoadConfig()

	var logger zerolog.Logger
	if cfg.Primary.Env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(ctx, cfg.Database.URL()); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}
	pool, err := database.NewPool(ctx, cfg.Database.URL(), logger, cfg.Observability.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("database pool")
	}
	defer pool.Close()

	nrApp, err := observability.NewApplication(cfg.Observability)
	if err != nil {
		logger.Fatal().Err(err).Msg("observability")
	}

	store := postgres.New(pool, logger)
	opts, err := cfg.Sink.Options(cfg.Database, sink.NewZerologDiagnostics(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("sink options")
	}
	snk, err := sink.New(ctx, store, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("sink")
	}

	if interval := cfg.Sink.JanitorInterval; interval > 0 {
		go runJanitor(ctx, store, interval, logger)
	}

	srv := server.New(cfg, snk, nrApp)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

// runJanitor periodically removes expired documents from TTL-enabled
// collections, standing in for the store's native expiry.
func runJanitor(ctx context.Context, store *postgres.Store, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.SweepExpired(ctx); err != nil {
				logger.Warn().Err(err).Msg("ttl sweep")
			}
		}
	}
}
