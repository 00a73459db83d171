package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/handler"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logger"
	"classattend/internal/notify"
	"classattend/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Production(), cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func run(ctx context.Context, cfg config.App) error {
	checks := map[string]handler.HealthCheck{}

	var st attendance.Store
	switch cfg.StoreBackend {
	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on restart")
		st = attendance.NewMemoryStore()
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(ctx, db.Client); err != nil {
			return err
		}
		st = attendance.NewRepository(db.Client, cfg.StoreTimeout)
	}
	checks["db"] = st.Ping

	var hub notify.Hub
	switch cfg.NotifyBackend {
	case "memory":
		hub = notify.NewMemoryHub(32)
	default:
		rdb := store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.WaitReady(ctx, cfg.DBConnectTimeout); err != nil {
			return err
		}
		hub = notify.NewRedisHub(rdb.Client, "attendance:session")
		checks["redis"] = func(ctx context.Context) error {
			if !rdb.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}
	}

	registry := attendance.NewRegistry(st, nil)
	verifier := attendance.NewVerifier(st, cfg.LateAfter, notify.Hook(hub))
	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	go sweepLimiter(ctx, limiter)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger("/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())

	handler.New(registry, verifier, hub, limiter, checks, handler.Options{
		SigningKey:         cfg.JWTSigningKey,
		Issuer:             cfg.JWTIssuer,
		TokenTTL:           cfg.TokenTTL,
		PublicRegistration: cfg.PublicRegistration,
	}).Routes(r)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the event stream is long-lived
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Str("notify", cfg.NotifyBackend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

func sweepLimiter(ctx context.Context, limiter *httpmiddleware.TokenBucket) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep(10 * time.Minute)
		}
	}
}
