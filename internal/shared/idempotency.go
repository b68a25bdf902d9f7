package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
)

// IdempotencyCollection stores processed request keys.
const IdempotencyCollection = "idempotency_keys"

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	store docstore.Store
	now   func() time.Time
}

type idempotencyKey struct {
	Key       string    `json:"key"`
	Module    string    `json:"module"`
	CreatedAt time.Time `json:"created_at"`
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(store docstore.Store) *IdempotencyStore {
	return &IdempotencyStore{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already processed", ErrConflict)

func docID(module, key string) string {
	return module + ":" + key
}

// CheckAndInsert ensures key uniqueness per module. The check and the insert
// are two separate store calls, so two racing requests may both pass.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.store == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	id := docID(module, key)
	_, err := s.store.Get(ctx, IdempotencyCollection, id)
	switch {
	case err == nil:
		return ErrIdempotencyConflict
	case !errors.Is(err, docstore.ErrNotFound):
		return err
	}
	return docstore.PutJSON(ctx, s.store, IdempotencyCollection, id, idempotencyKey{Key: key, Module: module, CreatedAt: s.now()})
}

// Cleanup removes entries older than retention and reports how many were removed.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-olderThan)
	keys, err := docstore.ListJSON[idempotencyKey](ctx, s.store, IdempotencyCollection, docstore.Query{})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if !k.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, IdempotencyCollection, docID(k.Module, k.Key)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil || s.store == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	return s.store.Delete(ctx, IdempotencyCollection, docID(module, key))
}
