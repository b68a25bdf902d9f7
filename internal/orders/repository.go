package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
)

const collection = "orders"

// Repository defines order persistence.
type Repository interface {
	Get(ctx context.Context, id string) (Order, error)
	Save(ctx context.Context, o Order) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]Order, error)
}

type repository struct {
	store docstore.Store
}

// NewRepository constructs the document backed repository.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	if err := docstore.GetJSON(ctx, r.store, collection, id, &o); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return Order{}, fmt.Errorf("orders: load %s: %w", id, err)
	}
	return o, nil
}

func (r *repository) Save(ctx context.Context, o Order) error {
	if err := docstore.PutJSON(ctx, r.store, collection, o.ID, o); err != nil {
		return fmt.Errorf("orders: save %s: %w", o.ID, err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("orders: delete %s: %w", id, err)
	}
	return nil
}

// List returns orders with the highest number first.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	q := docstore.Query{OrderBy: "number", Desc: true}
	if filter.Status != "" {
		q.Filter = map[string]string{"status": string(filter.Status)}
	}
	out, err := docstore.ListJSON[Order](ctx, r.store, collection, q)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	return out, nil
}
