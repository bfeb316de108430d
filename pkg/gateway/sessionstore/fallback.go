package sessionstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// FallbackOptions controls Redis selection in NewWithFallback.
type FallbackOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Logger   *slog.Logger
}

// NewWithFallback returns a Redis-backed store when a ping succeeds
// within the retry budget, and an in-memory store otherwise. Callers
// get a working Store either way; the degraded path is logged so
// operators notice that sessions will not survive a restart.
func NewWithFallback(ctx context.Context, opts FallbackOptions) Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		logger.Warn("redis unreachable, using in-memory session store",
			"addr", opts.Addr, "error", err)
		return NewMemoryStore(opts.TTL)
	}

	logger.Info("session store connected", "backend", "redis", "addr", opts.Addr)
	return NewRedisStore(client, opts.TTL)
}
