package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Expirer ends sessions that stayed active longer than maxAge.
type Expirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ExpiryConfig controls the session expiry sweeper.
type ExpiryConfig struct {
	MaxAge   time.Duration
	Interval time.Duration
	Timeout  time.Duration
}

// RunSessionExpiry sweeps once immediately and then every Interval until ctx
// is done. A zero MaxAge disables the job.
func RunSessionExpiry(ctx context.Context, expirer Expirer, cfg ExpiryConfig) {
	if cfg.MaxAge <= 0 {
		log.Info().Msg("session expiry job disabled")
		return
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	log.Info().Dur("max_age", cfg.MaxAge).Dur("interval", interval).Msg("session expiry job started")
	sweepOnce(ctx, expirer, cfg.MaxAge, timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, expirer, cfg.MaxAge, timeout)
		}
	}
}

func sweepOnce(ctx context.Context, expirer Expirer, maxAge, timeout time.Duration) int64 {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := expirer.ExpireStale(tickCtx, maxAge)
	if err != nil {
		log.Error().Err(err).Msg("session expiry sweep failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("ended", n).Msg("session expiry sweep ended stale sessions")
	}
	return n
}
