package orders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

const createBody = `{"customer":"Ana","phone":"11 91234-5678","items":[{"name":"Kit","quantity":2,"unit_price":"50"}],"shipping":"5"}`

func newRouter(t *testing.T) (http.Handler, *harness) {
	t.Helper()
	h := newHarness(t)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), h.svc, shared.NewIdempotencyStore(h.store)).MountRoutes(r)
	return r, h
}

func do(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndShow(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(router, http.MethodPost, "/orders", createBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.EqualValues(t, 1, created.Number)
	assert.Equal(t, "105", created.Total.String())
	assert.Equal(t, StatusDraft, created.Status)

	rec = do(router, http.MethodGet, "/orders/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/orders/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateRejectsInvalidPayload(t *testing.T) {
	router, h := newRouter(t)

	rec := do(router, http.MethodPost, "/orders", `{"customer":"Ana","phone":"123","items":[{"name":"Kit","quantity":1}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(router, http.MethodPost, "/orders", `{"customer":"Ana","unknown":true}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	n, err := sequence.NewStore(h.store, sequence.OrdersCounter, nil).Peek(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandlerIdempotencyKey(t *testing.T) {
	router, h := newRouter(t)
	headers := map[string]string{IdempotencyHeader: "abc-123"}

	rec := do(router, http.MethodPost, "/orders", createBody, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(router, http.MethodPost, "/orders", createBody, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)

	list, err := h.svc.ListOrders(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHandlerIdempotencyKeyReleasedOnValidationFailure(t *testing.T) {
	router, _ := newRouter(t)
	headers := map[string]string{IdempotencyHeader: "retry-me"}

	rec := do(router, http.MethodPost, "/orders", `{"customer":"Ana","phone":"11912345678","items":[]}`, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(router, http.MethodPost, "/orders", createBody, headers)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandlerStatusAndDelete(t *testing.T) {
	router, h := newRouter(t)
	p := h.product(t, "Kit", 4)

	body := `{"customer":"Ana","phone":"11912345678","items":[{"product_id":"` + p.ID + `","name":"Kit","quantity":3,"unit_price":"10"}]}`
	rec := do(router, http.MethodPost, "/orders", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = do(router, http.MethodPost, "/orders/"+created.ID+"/status", `{"status":"paid","payment_method":"Dinheiro"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.True(t, updated.StockDeducted)
	assert.Equal(t, "Dinheiro", updated.PaymentMethod)
	assert.Equal(t, 1, h.stock(t, p.ID))

	rec = do(router, http.MethodPost, "/orders/"+created.ID+"/status", `{"status":"archived"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodDelete, "/orders/"+created.ID, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 4, h.stock(t, p.ID))

	rec = do(router, http.MethodDelete, "/orders/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListPaginates(t *testing.T) {
	router, _ := newRouter(t)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/orders", createBody, nil).Code)
	}

	rec := do(router, http.MethodGet, "/orders?page=2&per_page=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Orders, 1)
	assert.EqualValues(t, 1, body.Orders[0].Number)
	assert.Equal(t, 3, body.Pagination.Total)

	rec = do(router, http.MethodGet, "/orders?status=lost", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(router, http.MethodGet, "/orders?page=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(router, http.MethodGet, "/orders?per_page=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusChangeWhileLockedIsRejected(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := newHarness(t)
	order, err := h.svc.CreateOrder(ctx, baseRequest(LineItemInput{Name: "X", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}))
	require.NoError(t, err)

	locked := NewService(NewRepository(h.store), sequence.NewStore(h.store, sequence.OrdersCounter, nil), h.inventory, h.ledger, h.leads, ServiceConfig{
		Locker: lock.NewRedis(client, lock.RedisConfig{TTL: time.Second}, nil),
	})
	lease, err := redislock.New(client).Obtain(ctx, lockKey(order.ID), time.Minute, nil)
	require.NoError(t, err)

	_, err = locked.UpdateOrderStatus(ctx, order.ID, StatusPaid, "")
	require.ErrorIs(t, err, lock.ErrBusy)
	require.ErrorIs(t, locked.DeleteOrder(ctx, order.ID), shared.ErrConflict)

	require.NoError(t, lease.Release(ctx))
	updated, err := locked.UpdateOrderStatus(ctx, order.ID, StatusPaid, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)
}

var _ docstore.Store = (*failingStockStore)(nil)
