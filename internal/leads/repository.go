package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
)

const collection = "leads"

// Repository persists leads in the document store.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Get(ctx context.Context, id string) (Lead, error) {
	var l Lead
	if err := docstore.GetJSON(ctx, r.store, collection, id, &l); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Lead{}, fmt.Errorf("%w: %s", ErrLeadNotFound, id)
		}
		return Lead{}, fmt.Errorf("leads: load %s: %w", id, err)
	}
	return l, nil
}

func (r *Repository) Save(ctx context.Context, l Lead) error {
	if err := docstore.PutJSON(ctx, r.store, collection, l.ID, l); err != nil {
		return fmt.Errorf("leads: save %s: %w", l.ID, err)
	}
	return nil
}

// List returns leads, most recently updated first.
func (r *Repository) List(ctx context.Context, status Status) ([]Lead, error) {
	q := docstore.Query{OrderBy: "updated_at", Desc: true}
	if status != "" {
		q.Filter = map[string]string{"status": string(status)}
	}
	out, err := docstore.ListJSON[Lead](ctx, r.store, collection, q)
	if err != nil {
		return nil, fmt.Errorf("leads: list: %w", err)
	}
	return out, nil
}
