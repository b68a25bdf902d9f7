// Package lock serialises writers that share a key across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// ErrBusy indicates another writer holds the key.
var ErrBusy = fmt.Errorf("%w: key is held by another writer", shared.ErrConflict)

// Locker runs fn while holding key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Noop runs fn without any coordination. It is the default locker and keeps
// the single-writer assumption of the original deployment.
type Noop struct{}

// WithLock calls fn directly.
func (Noop) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// Redis holds a redislock lease for the duration of fn.
type Redis struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// RedisConfig groups lease settings.
type RedisConfig struct {
	TTL     time.Duration
	Retries int
	Backoff time.Duration
}

// NewRedis constructs a Redis backed locker.
func NewRedis(client *redis.Client, cfg RedisConfig, logger *slog.Logger) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:  redislock.New(client),
		ttl:     cfg.TTL,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		logger:  logger,
	}
}

// WithLock obtains key, runs fn and releases the lease.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if r == nil || r.client == nil {
		return errors.New("lock: redis locker not initialised")
	}
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	}
	lease, err := r.client.Obtain(ctx, key, r.ttl, opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return fmt.Errorf("%w: %s", ErrBusy, key)
		}
		return fmt.Errorf("lock: obtain %s: %w", key, err)
	}
	defer func() {
		// Release with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("release lock", slog.String("key", key), slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
