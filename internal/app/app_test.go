package app

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
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/inventory"
	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/jobs"
)

func testConfig() *Config {
	return &Config{
		StoreDriver:          DriverMemory,
		SequenceDriver:       DriverStore,
		OrderLockTTL:         5 * time.Second,
		DefaultPaymentMethod: "Pix",
		RateLimit:            1000,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, DriverStore, cfg.SequenceDriver)
	assert.False(t, cfg.OrderLocks)
	assert.Equal(t, "Pix", cfg.DefaultPaymentMethod)
	assert.False(t, cfg.NeedsRedis())
	assert.False(t, cfg.QueueEnabled())
}

func TestQueueEnabledFollowsSharedBackends(t *testing.T) {
	cfg := testConfig()
	assert.False(t, cfg.QueueEnabled())
	cfg.StoreDriver = DriverPostgres
	assert.True(t, cfg.QueueEnabled())
	cfg = testConfig()
	cfg.OrderLocks = true
	assert.True(t, cfg.QueueEnabled())
}

func TestJobHandlerWithoutQueueReportsEmpty(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	handler, closeJobs := NewJobHandler(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { require.NoError(t, closeJobs()) })

	r := chi.NewRouter()
	r.Route("/jobs", handler.MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"failed":0}`, rec.Body.String())
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.StoreDriver = "sqlite"
	assert.ErrorContains(t, cfg.Validate(), "STORE_DRIVER")

	cfg = testConfig()
	cfg.SequenceDriver = "Redis"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverRedis, cfg.SequenceDriver)
	assert.True(t, cfg.NeedsRedis())

	cfg = testConfig()
	cfg.DefaultPaymentMethod = " "
	assert.Error(t, cfg.Validate())
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func newTestServer(t *testing.T, cfg *Config, opts Options) (http.Handler, *Container) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	opts.Domain = metrics.Domain()
	c, err := NewContainer(context.Background(), cfg, logger, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return NewRouter(c.Handlers(logger, jobs.NewHandler(nil, logger), metrics, cfg)), c
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterEndToEnd(t *testing.T) {
	router, c := newTestServer(t, testConfig(), Options{})

	rec := call(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = call(router, http.MethodPost, "/products", `{"name":"Kit Presente","stock":5,"sale_price":"100"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(router, http.MethodPost, "/orders", `{"customer":"Ana","phone":"11912345678","status":"paid","items":[{"name":"kit presente","quantity":2,"unit_price":"100"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order struct {
		ID            string `json:"id"`
		StockDeducted bool   `json:"stock_deducted"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&order))
	assert.True(t, order.StockDeducted)

	products, err := c.Inventory.ListProducts(context.Background(), inventory.ListFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 3, products[0].Stock)

	rec = call(router, http.MethodGet, "/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), order.ID)

	rec = call(router, http.MethodGet, "/jobs/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(router, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = call(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `crm_order_transitions_total{from="new",to="paid"} 1`)
	assert.Contains(t, rec.Body.String(), `crm_http_requests_total`)
}

func TestContainerWithRedisSequenceAndLocks(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.SequenceDriver = DriverRedis
	cfg.OrderLocks = true
	cfg.RedisAddr = mr.Addr()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	router, c := newTestServer(t, cfg, Options{Redis: client})
	for i := 0; i < 2; i++ {
		rec := call(router, http.MethodPost, "/orders", `{"customer":"Ana","phone":"11912345678","items":[{"name":"X","quantity":1,"unit_price":"1"}]}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	n, err := c.Sequence.Peek(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
