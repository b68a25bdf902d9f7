package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(docstore.NewMemory())
	svc := NewService(repo, shared.NewAuditLogger(docstore.NewMemory()), nil, nil, Config{})
	svc.now = func() time.Time { return time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func paidSource(id string, total int64) Source {
	return Source{
		OrderID:   id,
		Number:    7,
		Customer:  "Ana Souza",
		Total:     decimal.NewFromInt(total),
		CreatedAt: time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestPostRevenueForOrderBuildsEntry(t *testing.T) {
	svc, _ := newTestService(t)
	entry, posted, err := svc.PostRevenueForOrder(context.Background(), paidSource("o1", 210), "")
	require.NoError(t, err)
	require.True(t, posted)

	assert.Equal(t, EntryIDForOrder("o1"), entry.ID)
	assert.Equal(t, "Pedido #0007 - Ana Souza", entry.Description)
	assert.Equal(t, "2024-05", entry.Period)
	assert.Equal(t, TypeRevenue, entry.Type)
	assert.Equal(t, StatusPaid, entry.Status)
	assert.Equal(t, CategorySales, entry.Category)
	assert.Equal(t, "Pix", entry.PaymentMethod)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(210)))
	assert.Equal(t, "o1", entry.OrderID)
}

func TestPostRevenueForOrderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	for i := 0; i < 3; i++ {
		_, _, err := svc.PostRevenueForOrder(ctx, paidSource("o1", 100), "Cartão")
		require.NoError(t, err)
	}
	entries, err := repo.FindByOrder(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Cartão", entries[0].PaymentMethod)
}

func TestPostRevenueForOrderHonoursLegacyEntry(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	require.NoError(t, repo.Save(ctx, Entry{ID: "legacy-1", OrderID: "o1", Type: TypeRevenue, Amount: decimal.NewFromInt(5)}))

	_, posted, err := svc.PostRevenueForOrder(ctx, paidSource("o1", 100), "")
	require.NoError(t, err)
	assert.False(t, posted)
}

func TestPostRevenueSkipsNonPositiveTotals(t *testing.T) {
	svc, repo := newTestService(t)
	_, posted, err := svc.PostRevenueForOrder(context.Background(), paidSource("o1", 0), "")
	require.NoError(t, err)
	assert.False(t, posted)
	entries, err := repo.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostingDateFallbacks(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, created, Source{CreatedAt: created}.PostingDate(now))
	assert.Equal(t, now, Source{}.PostingDate(now))
}

func TestReconcilePostsOnlyMissing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _, err := svc.PostRevenueForOrder(ctx, paidSource("o1", 100), "")
	require.NoError(t, err)

	sources := []Source{paidSource("o1", 100), paidSource("o2", 50), paidSource("o3", 0)}
	n, err := svc.Reconcile(ctx, sources)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.Reconcile(ctx, sources)
	require.NoError(t, err)
	assert.Zero(t, n)

	refs, err := svc.OrderRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"o1": true, "o2": true}, refs)
}

type brokenSaveRepo struct {
	*Repository
	failFor string
}

func (r *brokenSaveRepo) Save(ctx context.Context, e Entry) error {
	if e.OrderID == r.failFor {
		return errors.New("quota exceeded")
	}
	return r.Repository.Save(ctx, e)
}

func TestReconcileContinuesPastFailures(t *testing.T) {
	repo := &brokenSaveRepo{Repository: NewRepository(docstore.NewMemory()), failFor: "o1"}
	svc := NewService(repo, nil, nil, nil, Config{DefaultPaymentMethod: "Dinheiro"})

	n, err := svc.Reconcile(context.Background(), []Source{paidSource("o1", 10), paidSource("o2", 20)})
	require.Error(t, err)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, 1, n)

	entry, err := repo.Get(context.Background(), EntryIDForOrder("o2"))
	require.NoError(t, err)
	assert.Equal(t, "Dinheiro", entry.PaymentMethod)
}

func TestManualEntriesAndSummary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateEntry(ctx, EntryInput{Date: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), Type: TypeExpense, Description: "Frete", Category: "Logística", Amount: decimal.RequireFromString("30.50")})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, EntryInput{Date: time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), Type: TypeRevenue, Status: StatusPending, Description: "Sinal", Category: "Sales", Amount: decimal.NewFromInt(99)})
	require.NoError(t, err)
	_, _, err = svc.PostRevenueForOrder(ctx, paidSource("o1", 210), "")
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, "210", sum.Revenue.String())
	assert.Equal(t, "30.5", sum.Expense.String())
	assert.Equal(t, "179.5", sum.Balance.String())
	assert.Equal(t, 2, sum.Entries)

	entries, err := svc.ListEntries(ctx, ListFilter{Period: "2024-05"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Sinal", entries[0].Description)

	expenses, err := svc.ListEntries(ctx, ListFilter{Type: TypeExpense})
	require.NoError(t, err)
	require.Len(t, expenses, 1)

	_, err = svc.ListEntries(ctx, ListFilter{Period: "May"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateEntryValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateEntry(context.Background(), EntryInput{Date: time.Now(), Type: "gift", Description: "x", Category: "y", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateEntry(context.Background(), EntryInput{Date: time.Now(), Type: TypeExpense, Description: "x", Category: "y"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteEntryAllowsRepost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	entry, _, err := svc.PostRevenueForOrder(ctx, paidSource("o1", 10), "")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEntry(ctx, entry.ID))
	require.ErrorIs(t, svc.DeleteEntry(ctx, entry.ID), shared.ErrNotFound)

	_, posted, err := svc.PostRevenueForOrder(ctx, paidSource("o1", 10), "")
	require.NoError(t, err)
	assert.True(t, posted)
}
