package shared

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
)

func TestIdempotencyStoreRejectsReplay(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(docstore.NewMemory())

	require.NoError(t, store.CheckAndInsert(ctx, "abc", "orders"))
	err := store.CheckAndInsert(ctx, "abc", "orders")
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, store.CheckAndInsert(ctx, "abc", "leads"))

	require.NoError(t, store.Delete(ctx, "abc", "orders"))
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "orders"))
}

func TestIdempotencyStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(docstore.NewMemory())
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base.Add(-48 * time.Hour) }
	require.NoError(t, store.CheckAndInsert(ctx, "old", "orders"))
	store.now = func() time.Time { return base }
	require.NoError(t, store.CheckAndInsert(ctx, "new", "orders"))

	removed, err := store.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	require.NoError(t, store.CheckAndInsert(ctx, "old", "orders"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "new", "orders"), ErrIdempotencyConflict)
}

func TestAuditLoggerRecordsAndLists(t *testing.T) {
	ctx := context.Background()
	logger := NewAuditLogger(docstore.NewMemory())

	require.Error(t, logger.Record(ctx, AuditLog{Action: "order:create"}))
	require.NoError(t, logger.Record(ctx, AuditLog{Action: "order:create", Entity: "order", EntityID: "o1", At: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, logger.Record(ctx, AuditLog{Action: "order:status", Entity: "order", EntityID: "o1", At: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, logger.Record(ctx, AuditLog{Action: "order:create", Entity: "order", EntityID: "o2"}))

	logs, err := logger.List(ctx, "order", "o1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "order:status", logs[0].Action)
	assert.Equal(t, "system", logs[0].Actor)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, meta := Paginate(items, 2, 2)
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, 3, meta.TotalPages)

	page, _ = Paginate(items, 9, 2)
	assert.Empty(t, page)
}

func TestParsePage(t *testing.T) {
	page, perPage, err := ParsePage(url.Values{})
	require.NoError(t, err)
	assert.Zero(t, page)
	assert.Zero(t, perPage)

	page, perPage, err = ParsePage(url.Values{"page": {"3"}, "per_page": {"15"}})
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, 15, perPage)

	for _, q := range []url.Values{
		{"page": {"two"}},
		{"page": {"0"}},
		{"per_page": {"-5"}},
		{"per_page": {"1.5"}},
	} {
		_, _, err := ParsePage(q)
		require.ErrorIs(t, err, ErrValidation, "%v", q)
	}
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "validation failed: phone too short", UserSafeMessage(Invalid("phone too short")))
	assert.Equal(t, "internal error", UserSafeMessage(errors.New("dial tcp: refused")))
}
