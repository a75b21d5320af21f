package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinehub/order-platform/internal/order/application"
	"github.com/dinehub/order-platform/internal/order/domain"
)

type Middleware = func(http.Handler) http.Handler

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

// Routes mounts the order endpoints. staff guards the endpoints reserved for
// authenticated staff; idem deduplicates order submissions carrying an
// Idempotency-Key. Either may be nil.
func (h *Handler) Routes(staff, idem Middleware) http.Handler {
	if staff == nil {
		staff = func(next http.Handler) http.Handler { return next }
	}
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
	})

	r.Route("/orders", func(r chi.Router) {
		// QR customers create and track orders without a session.
		r.With(idem).Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/search", h.searchOrders)
		r.Get("/{id}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(staff)
			r.Get("/stats", h.stats)
			r.Patch("/bulk-status", h.bulkUpdateStatus)
			r.Patch("/{id}/status", h.updateStatus)
			r.Delete("/{id}", h.deleteOrder)
		})
	})
	return r
}

type createOrderRequest struct {
	TableID             int64                    `json:"table_id"`
	CustomerName        string                   `json:"customer_name"`
	Items               []createOrderItemRequest `json:"items"`
	SpecialInstructions string                   `json:"special_instructions"`
}

// createOrderItemRequest deliberately has no price field: prices are resolved
// from the catalog server-side, whatever the client sends.
type createOrderItemRequest struct {
	MenuItemID      int64  `json:"menu_item_id"`
	Quantity        int    `json:"quantity"`
	SpecialRequests string `json:"special_requests"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := application.CreateOrderInput{
		TableID:             req.TableID,
		CustomerName:        req.CustomerName,
		SpecialInstructions: req.SpecialInstructions,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, application.CreateItemInput{
			MenuItemID:      it.MenuItemID,
			Quantity:        it.Quantity,
			SpecialRequests: it.SpecialRequests,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.list(w, r, f)
}

func (h *Handler) searchOrders(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.list(w, r, f)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, f domain.Filter) {
	orders, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	EstimatedTime int    `json:"estimated_time"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, application.UpdateStatusInput{
		Status:           req.Status,
		Reason:           req.Reason,
		EstimatedMinutes: req.EstimatedTime,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type bulkStatusRequest struct {
	OrderIDs []uuid.UUID `json:"orderIds"`
	Status   string      `json:"status"`
}

type bulkStatusResponse struct {
	Count         int            `json:"count"`
	UpdatedOrders []domain.Order `json:"updatedOrders"`
}

func (h *Handler) bulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.service.BulkUpdateStatus(r.Context(), req.OrderIDs, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if updated == nil {
		updated = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, bulkStatusResponse{Count: len(updated), UpdatedOrders: updated})
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, err := h.service.DeleteOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func filterFromQuery(r *http.Request, freetext bool) (domain.Filter, error) {
	var f domain.Filter
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			return domain.Filter{}, errors.New("invalid status filter")
		}
		f.Status = &st
	}
	if s := q.Get("table_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return domain.Filter{}, errors.New("invalid table_id filter")
		}
		f.TableID = &id
	}
	if !freetext {
		return f, nil
	}

	f.Query = q.Get("query")
	if s := q.Get("date_from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return domain.Filter{}, errors.New("invalid date_from, use YYYY-MM-DD")
		}
		f.DateFrom = &t
	}
	if s := q.Get("date_to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return domain.Filter{}, errors.New("invalid date_to, use YYYY-MM-DD")
		}
		// Inclusive through the end of the named day.
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}
	return f, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
