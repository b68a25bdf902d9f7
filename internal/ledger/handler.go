package ledger

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Sweeper posts revenue missing for paid orders.
type Sweeper interface {
	ReconcileRevenue(ctx context.Context) (int, error)
}

// Handler wires HTTP endpoints for the ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
	sweeper Sweeper
	sweeps  singleflight.Group
}

// NewHandler constructs the ledger handler. sweeper may be nil.
func NewHandler(logger *slog.Logger, service *Service, sweeper Sweeper) *Handler {
	return &Handler{logger: logger, service: service, sweeper: sweeper}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger", h.handleList)
	r.Post("/ledger", h.handleCreate)
	r.Get("/ledger/summary", h.handleSummary)
	r.Delete("/ledger/{id}", h.handleDelete)
}

type listResponse struct {
	Entries []Entry `json:"entries"`
	Posted  int     `json:"reconciled"`
}

// sweep runs the reconciliation once for all concurrent ledger loads.
func (h *Handler) sweep(ctx context.Context) (int, error) {
	if h.sweeper == nil {
		return 0, nil
	}
	ch := h.sweeps.DoChan("reconcile", func() (interface{}, error) {
		return h.sweeper.ReconcileRevenue(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		n, _ := res.Val.(int)
		return n, res.Err
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	posted, err := h.sweep(r.Context())
	if err != nil {
		// The listing is still useful when the sweep partially failed.
		h.logger.Error("ledger sweep failed", slog.Any("error", err))
	}
	q := r.URL.Query()
	entries, err := h.service.ListEntries(r.Context(), ListFilter{Period: q.Get("period"), Type: EntryType(q.Get("type"))})
	if err != nil {
		h.fail(w, "list ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Entries: entries, Posted: posted})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input EntryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), input)
	if err != nil {
		h.fail(w, "create ledger entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, "ledger summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete ledger entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.UserSafeMessage(err) == "internal error" {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
