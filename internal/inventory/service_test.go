package inventory

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

type flakyRepo struct {
	*Repository
	failSave map[string]bool
}

func (r *flakyRepo) SaveProduct(ctx context.Context, p Product) error {
	if r.failSave[p.ID] {
		return errors.New("write timeout")
	}
	return r.Repository.SaveProduct(ctx, p)
}

type countingMetrics struct {
	moved map[string]int
}

func (m *countingMetrics) StockMoved(direction string, qty int) {
	if m.moved == nil {
		m.moved = map[string]int{}
	}
	m.moved[direction] += qty
}

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(docstore.NewMemory())
	return NewService(repo, nil, nil, nil), repo
}

func seedProduct(t *testing.T, svc *Service, name string, stock int) Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), ProductInput{Name: name, Stock: stock, SalePrice: decimal.NewFromInt(100)})
	require.NoError(t, err)
	return p
}

func TestAdjustStockDeductAndReturn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := seedProduct(t, svc, "Caneca", 10)

	res, err := svc.AdjustStock(ctx, AdjustInput{Reference: "o1", Direction: DirectionDeduct, Lines: []StockLine{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, 8, res.Applied[0].BalanceAfter)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)

	_, err = svc.AdjustStock(ctx, AdjustInput{Reference: "o1", Direction: DirectionReturn, Lines: []StockLine{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)
	got, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)

	moves, err := svc.StockCard(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, moves, 2)
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := seedProduct(t, svc, "Vela", 3)

	steps := []struct {
		dir Direction
		qty int
	}{
		{DirectionDeduct, 2}, {DirectionDeduct, 5}, {DirectionReturn, 1}, {DirectionDeduct, 4}, {DirectionReturn, -3}, {DirectionDeduct, -7},
	}
	for _, step := range steps {
		_, err := svc.AdjustStock(ctx, AdjustInput{Direction: step.dir, Lines: []StockLine{{ProductID: p.ID, Quantity: step.qty}}})
		require.NoError(t, err)
		got, err := svc.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.Stock, 0)
	}
}

func TestAdjustStockSkipsFreeTextAndMissingProducts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := seedProduct(t, svc, "Sabonete", 4)

	res, err := svc.AdjustStock(ctx, AdjustInput{Direction: DirectionDeduct, Lines: []StockLine{
		{Name: "Embalagem presente", Quantity: 1},
		{ProductID: "gone", Quantity: 1},
		{ProductID: p.ID, Quantity: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, res.Skipped)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, 3, res.Applied[0].BalanceAfter)
}

func TestAdjustStockContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	base := NewRepository(docstore.NewMemory())
	repo := &flakyRepo{Repository: base, failSave: map[string]bool{}}
	metrics := &countingMetrics{}
	svc := NewService(repo, nil, metrics, nil)

	a := seedProduct(t, svc, "A", 5)
	b := seedProduct(t, svc, "B", 5)
	repo.failSave[a.ID] = true

	res, err := svc.AdjustStock(ctx, AdjustInput{Reference: "o9", Direction: DirectionDeduct, Lines: []StockLine{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: b.ID, Quantity: 2},
	}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "write timeout")
	require.Len(t, res.Applied, 1)

	gotB, err := svc.GetProduct(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, gotB.Stock)
	assert.Equal(t, 2, metrics.moved[string(DirectionDeduct)])
}

func TestAdjustStockRejectsUnknownDirection(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AdjustStock(context.Background(), AdjustInput{Direction: DirectionAdjust})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateProduct(context.Background(), ProductInput{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateProduct(context.Background(), ProductInput{Name: "X", Stock: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateProduct(context.Background(), ProductInput{Name: "X", SalePrice: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateProductRecordsManualAdjustment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := seedProduct(t, svc, "Pote", 2)
	svc.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }

	stock := 9
	name := "Pote Grande"
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &stock, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Stock)
	assert.Equal(t, "pote grande", updated.NameKey)

	moves, err := svc.StockCard(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, DirectionAdjust, moves[0].Direction)
	assert.Equal(t, 7, moves[0].Quantity)
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := seedProduct(t, svc, "Temp", 1)
	require.NoError(t, svc.DeleteProduct(ctx, p.ID))
	_, err := svc.GetProduct(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), ErrProductNotFound)
}

func TestMatchByName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	cafe := seedProduct(t, svc, "Café  Especial", 1)
	inactive := false
	_, err := svc.CreateProduct(ctx, ProductInput{Name: "Chá Verde", Active: &inactive})
	require.NoError(t, err)

	id, ok, err := svc.MatchByName(ctx, "cafe especial")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cafe.ID, id)

	_, ok, err = svc.MatchByName(ctx, "CHA VERDE")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = svc.MatchByName(ctx, "nada")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListProductsInStockSkipsReservedStock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	free := seedProduct(t, svc, "Livre", 3)
	held, err := svc.CreateProduct(ctx, ProductInput{Name: "Reservado", Stock: 2, Reserved: 2})
	require.NoError(t, err)
	seedProduct(t, svc, "Esgotado", 0)

	assert.Equal(t, 3, free.Available())
	assert.Zero(t, held.Available())
	assert.Zero(t, Product{Stock: 1, Reserved: 4}.Available())

	all, err := svc.ListProducts(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	list, err := svc.ListProducts(ctx, ListFilter{InStock: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, free.ID, list[0].ID)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "acai com granola", NormalizeName("  Açaí   COM Granola "))
	assert.Equal(t, "", NormalizeName("   "))
}
