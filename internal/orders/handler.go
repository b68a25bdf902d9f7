package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// IdempotencyHeader lets clients make order creation safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for orders.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs the order handler. idem may be nil.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idem}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Show)
	r.Post("/orders/{id}/status", h.UpdateStatus)
	r.Delete("/orders/{id}", h.Delete)
}

type listResponse struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

// partialResponse carries an order whose side effects did not all complete.
type partialResponse struct {
	Order *Order `json:"order"`
	Error string `json:"error"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage, err := shared.ParsePage(q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListOrders(r.Context(), ListFilter{Status: Status(q.Get("status"))})
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	items, meta := shared.Paginate(list, page, perPage)
	httpx.JSON(w, http.StatusOK, listResponse{Orders: items, Pagination: meta})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "orders"); err != nil {
			h.fail(w, "order idempotency", err)
			return
		}
	}
	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		if order != nil {
			h.logger.Error("order created with incomplete side effects", slog.String("order_id", order.ID), slog.Any("error", err))
			httpx.JSON(w, http.StatusAccepted, partialResponse{Order: order, Error: err.Error()})
			return
		}
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(r.Context(), key, "orders"); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.PaymentMethod)
	if err != nil {
		if order != nil {
			h.logger.Error("order status saved with incomplete side effects", slog.String("order_id", order.ID), slog.Any("error", err))
			httpx.JSON(w, http.StatusAccepted, partialResponse{Order: order, Error: err.Error()})
			return
		}
		h.fail(w, "update order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete order", err)
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
