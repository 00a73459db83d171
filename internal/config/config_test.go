package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "STORE_BACKEND", "LATE_AFTER", "PUBLIC_REGISTRATION", "RATE_LIMIT_PER_MIN"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "postgres", cfg.StoreBackend)
	require.Equal(t, time.Duration(0), cfg.LateAfter)
	require.Equal(t, 6*time.Hour, cfg.SessionMaxAge)
	require.False(t, cfg.PublicRegistration)
	require.Equal(t, 120, cfg.RateLimitPerMin)
	require.NoError(t, cfg.Validate())
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("NOTIFY_BACKEND", "memory")
	t.Setenv("LATE_AFTER", "15m")
	t.Setenv("PUBLIC_REGISTRATION", "true")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")

	cfg := Load()
	require.Equal(t, "memory", cfg.StoreBackend)
	require.Equal(t, "memory", cfg.NotifyBackend)
	require.Equal(t, 15*time.Minute, cfg.LateAfter)
	require.True(t, cfg.PublicRegistration)
	require.Equal(t, 30, cfg.RateLimitPerMin)
}

func TestLoad_invalidValuesFallBack(t *testing.T) {
	t.Setenv("LATE_AFTER", "soon")
	t.Setenv("PUBLIC_REGISTRATION", "maybe")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")

	cfg := Load()
	require.Equal(t, time.Duration(0), cfg.LateAfter)
	require.False(t, cfg.PublicRegistration)
	require.Equal(t, 120, cfg.RateLimitPerMin)
}

func TestValidate(t *testing.T) {
	base := App{
		Env:             "dev",
		JWTSigningKey:   defaultSigningKey,
		StoreBackend:    "memory",
		NotifyBackend:   "memory",
		RateLimitPerMin: 10,
		TokenTTL:        time.Hour,
		SessionMaxAge:   time.Hour,
		SweepInterval:   time.Minute,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*App)
	}{
		{name: "default key in production", mutate: func(a *App) { a.Env = "production" }},
		{name: "empty key", mutate: func(a *App) { a.JWTSigningKey = "" }},
		{name: "unknown store", mutate: func(a *App) { a.StoreBackend = "sqlite" }},
		{name: "unknown notify", mutate: func(a *App) { a.NotifyBackend = "kafka" }},
		{name: "zero rate", mutate: func(a *App) { a.RateLimitPerMin = 0 }},
		{name: "negative late", mutate: func(a *App) { a.LateAfter = -time.Minute }},
		{name: "sweeper without interval", mutate: func(a *App) { a.SweepInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
