package leads

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Handler wires HTTP endpoints for leads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the lead handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers lead routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/leads", h.handleList)
	r.Post("/leads", h.handleCreate)
	r.Get("/leads/{id}", h.handleGet)
	r.Post("/leads/{id}/status", h.handleStatus)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListLeads(r.Context(), Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, "list leads", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.CreateLead(r.Context(), req)
	if err != nil {
		h.fail(w, "create lead", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	lead, err := h.service.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get lead", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, "set lead status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.UserSafeMessage(err) == "internal error" {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
