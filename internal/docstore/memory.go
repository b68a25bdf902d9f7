package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Memory keeps collections in process memory.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	clock       func() time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]Document),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Put(_ context.Context, collection, id string, body json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		m.collections[collection] = docs
	}
	docs[id] = Document{ID: id, Body: bytes.Clone(body), UpdatedAt: m.clock()}
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) List(_ context.Context, collection string, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	docs := make([]Document, 0, len(m.collections[collection]))
	for _, doc := range m.collections[collection] {
		docs = append(docs, cloneDoc(doc))
	}
	m.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	result := docs[:0]
	fieldsByID := make(map[string]map[string]json.RawMessage, len(docs))
	for _, doc := range docs {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(doc.Body, &fields); err != nil {
			continue
		}
		if !matches(fields, q.Filter) {
			continue
		}
		fieldsByID[doc.ID] = fields
		result = append(result, doc)
	}

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			a := fieldsByID[result[i].ID][q.OrderBy]
			b := fieldsByID[result[j].ID][q.OrderBy]
			if q.Desc {
				return less(b, a)
			}
			return less(a, b)
		})
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func matches(fields map[string]json.RawMessage, filter map[string]string) bool {
	for field, want := range filter {
		raw, ok := fields[field]
		if !ok || textValue(raw) != want {
			return false
		}
	}
	return true
}

// textValue mirrors Postgres' ->> operator: strings unquoted, other scalars
// as their JSON literal.
func textValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func less(a, b json.RawMessage) bool {
	av, bv := textValue(a), textValue(b)
	af, aErr := strconv.ParseFloat(av, 64)
	bf, bErr := strconv.ParseFloat(bv, 64)
	if aErr == nil && bErr == nil {
		return af < bf
	}
	at, aErr := time.Parse(time.RFC3339Nano, av)
	bt, bErr := time.Parse(time.RFC3339Nano, bv)
	if aErr == nil && bErr == nil {
		return at.Before(bt)
	}
	return av < bv
}

func cloneDoc(doc Document) Document {
	doc.Body = bytes.Clone(doc.Body)
	return doc
}
