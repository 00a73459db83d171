package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/jobs"
	"classattend/internal/logger"
	"classattend/internal/store"
)

// Worker runs background maintenance against the shared database.
func main() {
	cfg := config.Load()
	logger.Setup(cfg.Production(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StoreBackend == "memory" {
		log.Fatal().Msg("worker needs STORE_BACKEND=postgres; the in-memory store is per process")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	registry := attendance.NewRegistry(attendance.NewRepository(db.Client, cfg.StoreTimeout), nil)

	log.Info().Msg("worker started")
	jobs.RunSessionExpiry(ctx, registry, jobs.ExpiryConfig{
		MaxAge:   cfg.SessionMaxAge,
		Interval: cfg.SweepInterval,
		Timeout:  cfg.StoreTimeout,
	})
	if cfg.SessionMaxAge <= 0 {
		<-ctx.Done()
	}
	log.Info().Msg("worker stopped")
}
