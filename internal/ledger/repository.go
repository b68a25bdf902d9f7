package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
)

const entriesCollection = "ledger_entries"

// Repository persists entries in the document store.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Get(ctx context.Context, id string) (Entry, error) {
	var e Entry
	if err := docstore.GetJSON(ctx, r.store, entriesCollection, id, &e); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return Entry{}, fmt.Errorf("ledger: load entry %s: %w", id, err)
	}
	return e, nil
}

func (r *Repository) Save(ctx context.Context, e Entry) error {
	if err := docstore.PutJSON(ctx, r.store, entriesCollection, e.ID, e); err != nil {
		return fmt.Errorf("ledger: save entry %s: %w", e.ID, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, entriesCollection, id); err != nil {
		return fmt.Errorf("ledger: delete entry %s: %w", id, err)
	}
	return nil
}

// List returns entries newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	q := docstore.Query{OrderBy: "date", Desc: true}
	if filter.Period != "" || filter.Type != "" {
		q.Filter = map[string]string{}
	}
	if filter.Period != "" {
		q.Filter["period"] = filter.Period
	}
	if filter.Type != "" {
		q.Filter["type"] = string(filter.Type)
	}
	entries, err := docstore.ListJSON[Entry](ctx, r.store, entriesCollection, q)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	return entries, nil
}

// FindByOrder returns entries that reference orderID.
func (r *Repository) FindByOrder(ctx context.Context, orderID string) ([]Entry, error) {
	entries, err := docstore.ListJSON[Entry](ctx, r.store, entriesCollection, docstore.Query{
		Filter: map[string]string{"order_id": orderID},
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: find entries for order %s: %w", orderID, err)
	}
	return entries, nil
}
