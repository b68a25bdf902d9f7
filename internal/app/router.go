package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-crm/internal/inventory"
	"github.com/odyssey-erp/odyssey-crm/internal/leads"
	"github.com/odyssey-erp/odyssey-crm/internal/ledger"
	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/internal/orders"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	OrdersHandler    *orders.Handler
	InventoryHandler *inventory.Handler
	LedgerHandler    *ledger.Handler
	LeadsHandler     *leads.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the CRM defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" not supported on "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.OrdersHandler != nil {
		params.OrdersHandler.MountRoutes(r)
	}
	if params.InventoryHandler != nil {
		params.InventoryHandler.MountRoutes(r)
	}
	if params.LedgerHandler != nil {
		params.LedgerHandler.MountRoutes(r)
	}
	if params.LeadsHandler != nil {
		params.LeadsHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

// Handlers builds the HTTP handlers for the container's services.
func (c *Container) Handlers(logger *slog.Logger, jobHandler *jobs.Handler, metrics *observability.Metrics, cfg *Config) RouterParams {
	return RouterParams{
		Logger:           logger,
		Config:           cfg,
		OrdersHandler:    orders.NewHandler(logger, c.Orders, c.Idempotency),
		InventoryHandler: inventory.NewHandler(logger, c.Inventory),
		LedgerHandler:    ledger.NewHandler(logger, c.Ledger, c.Orders),
		LeadsHandler:     leads.NewHandler(logger, c.Leads),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	}
}

// NewJobHandler builds the /jobs handler. Without a shared queue the handler
// runs without an inspector and reports an empty queue.
func NewJobHandler(cfg *Config, logger *slog.Logger) (*jobs.Handler, func() error) {
	if !cfg.QueueEnabled() {
		return jobs.NewHandler(nil, logger), func() error { return nil }
	}
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	return jobs.NewHandler(inspector, logger), inspector.Close
}
