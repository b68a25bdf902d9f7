package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
)

const (
	productsCollection  = "products"
	movementsCollection = "stock_movements"
)

// Repository persists products and stock movements in the document store.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// GetProduct loads a product by id.
func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	if err := docstore.GetJSON(ctx, r.store, productsCollection, id, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return Product{}, fmt.Errorf("inventory: load product %s: %w", id, err)
	}
	return p, nil
}

// SaveProduct upserts a product.
func (r *Repository) SaveProduct(ctx context.Context, p Product) error {
	if err := docstore.PutJSON(ctx, r.store, productsCollection, p.ID, p); err != nil {
		return fmt.Errorf("inventory: save product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProduct removes a product document.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, productsCollection, id); err != nil {
		return fmt.Errorf("inventory: delete product %s: %w", id, err)
	}
	return nil
}

// ListProducts returns products ordered by name.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	q := docstore.Query{OrderBy: "name"}
	if filter.Active != nil {
		q.Filter = map[string]string{"active": strconv.FormatBool(*filter.Active)}
	}
	products, err := docstore.ListJSON[Product](ctx, r.store, productsCollection, q)
	if err != nil {
		return nil, fmt.Errorf("inventory: list products: %w", err)
	}
	return products, nil
}

// FindByNameKey returns products whose normalised name equals key.
func (r *Repository) FindByNameKey(ctx context.Context, key string) ([]Product, error) {
	products, err := docstore.ListJSON[Product](ctx, r.store, productsCollection, docstore.Query{
		Filter: map[string]string{"name_key": key},
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: find product %q: %w", key, err)
	}
	return products, nil
}

// InsertMovement appends a stock card entry.
func (r *Repository) InsertMovement(ctx context.Context, m Movement) error {
	if err := docstore.PutJSON(ctx, r.store, movementsCollection, m.ID, m); err != nil {
		return fmt.Errorf("inventory: record movement %s: %w", m.ID, err)
	}
	return nil
}

// ListMovements returns the stock card of a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, productID string, limit int) ([]Movement, error) {
	moves, err := docstore.ListJSON[Movement](ctx, r.store, movementsCollection, docstore.Query{
		Filter:  map[string]string{"product_id": productID},
		OrderBy: "at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: list movements %s: %w", productID, err)
	}
	return moves, nil
}
