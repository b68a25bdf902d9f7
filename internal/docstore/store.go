// Package docstore provides the document persistence used by the CRM core.
//
// Each entity lives as a JSON body addressed by id inside a named collection.
// The store offers no multi-document transaction: callers issue independent
// writes and any failure between them leaves earlier writes in place.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// ErrInvalidQuery indicates a malformed filter or ordering field.
var ErrInvalidQuery = errors.New("docstore: invalid query")

// Document is a raw JSON body stored under an id.
type Document struct {
	ID        string
	Body      json.RawMessage
	UpdatedAt time.Time
}

// Query narrows a List call. Filter values are compared against the text
// form of the top-level JSON field (strings unquoted, numbers and booleans as
// literals).
type Query struct {
	Filter  map[string]string
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the persistence collaborator used by every domain package.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, body json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, q Query) ([]Document, error)
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks field names used by the query.
func (q Query) Validate() error {
	for field := range q.Filter {
		if !fieldPattern.MatchString(field) {
			return fmt.Errorf("%w: filter field %q", ErrInvalidQuery, field)
		}
	}
	if q.OrderBy != "" && !fieldPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

// GetJSON loads a document and decodes it into dest.
func GetJSON(ctx context.Context, s Store, collection, id string, dest any) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc.Body, dest); err != nil {
		return fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// PutJSON encodes value and upserts it.
func PutJSON(ctx context.Context, s Store, collection, id string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	return s.Put(ctx, collection, id, body)
}

// ListJSON lists documents and decodes each body into T.
func ListJSON[T any](ctx context.Context, s Store, collection string, q Query) ([]T, error) {
	docs, err := s.List(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc.Body, &item); err != nil {
			return nil, fmt.Errorf("docstore: decode %s/%s: %w", collection, doc.ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}
