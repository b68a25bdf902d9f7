// Package sequence mints the human readable order numbers.
//
// The Store generator reads the persisted counter, adds one and writes it
// back. Two callers racing on the same counter can observe the same prior
// value and mint the same number unless a lock.Locker other than lock.Noop
// is configured. The Redis generator uses INCR and is atomic.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/lock"
)

const (
	// Collection holds counter documents.
	Collection = "counters"
	// OrdersCounter is the counter backing order numbers.
	OrdersCounter = "orders"
)

// Generator mints strictly increasing numbers.
type Generator interface {
	Next(ctx context.Context) (int64, error)
	Peek(ctx context.Context) (int64, error)
}

type counterDoc struct {
	Value int64 `json:"value"`
}

// Store keeps the counter as a document.
type Store struct {
	store  docstore.Store
	name   string
	locker lock.Locker
}

// NewStore constructs a document backed generator for counter name.
func NewStore(store docstore.Store, name string, locker lock.Locker) *Store {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Store{store: store, name: name, locker: locker}
}

// Next reads the counter (0 when absent), persists counter+1 and returns it.
func (s *Store) Next(ctx context.Context) (int64, error) {
	var next int64
	err := s.locker.WithLock(ctx, "sequence:"+s.name, func(ctx context.Context) error {
		current, err := s.Peek(ctx)
		if err != nil {
			return err
		}
		next = current + 1
		if err := docstore.PutJSON(ctx, s.store, Collection, s.name, counterDoc{Value: next}); err != nil {
			return fmt.Errorf("sequence: write %s: %w", s.name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Peek returns the last minted number without advancing it.
func (s *Store) Peek(ctx context.Context) (int64, error) {
	var doc counterDoc
	if err := docstore.GetJSON(ctx, s.store, Collection, s.name, &doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("sequence: read %s: %w", s.name, err)
	}
	return doc.Value, nil
}

// Redis keeps the counter in a Redis key.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis constructs an INCR backed generator for counter name.
func NewRedis(client *redis.Client, name string) *Redis {
	return &Redis{client: client, key: "crm:sequence:" + name}
}

// Next increments the counter atomically.
func (r *Redis) Next(ctx context.Context) (int64, error) {
	n, err := r.client.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("sequence: incr %s: %w", r.key, err)
	}
	return n, nil
}

// Peek returns the current counter value.
func (r *Redis) Peek(ctx context.Context) (int64, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("sequence: get %s: %w", r.key, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sequence: parse %s: %w", r.key, err)
	}
	return n, nil
}

// Seed moves the Redis counter forward to at least floor, used when switching
// from the store driver so numbers keep increasing.
func (r *Redis) Seed(ctx context.Context, floor int64) error {
	current, err := r.Peek(ctx)
	if err != nil {
		return err
	}
	if current >= floor {
		return nil
	}
	return r.client.Set(ctx, r.key, floor, 0).Err()
}
