package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.HandleCreate)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("GET /orders/user/{userId}", h.HandleListByUser)
	mux.HandleFunc("POST /orders/{id}/cancel", h.HandleCancel)
	mux.HandleFunc("PATCH /orders/{id}/status", h.HandleUpdateStatus)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "place order", err, "user_id", req.UserID)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get order", err, "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	orders, err := h.svc.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "list orders", err, "user_id", userID)
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.svc.CancelOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "cancel order", err, "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, "update order status", err, "order_id", id, "status", req.Status)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error, attrs ...any) {
	kind := KindOf(err)
	status := kind.HTTPStatus()

	message := "internal server error"
	var e *Error
	if errors.As(err, &e) {
		message = e.Message
	}

	args := append([]any{"error", err, "kind", kind.String()}, attrs...)
	if status >= http.StatusInternalServerError {
		h.logger.Error("failed to "+op, args...)
	} else {
		h.logger.Info(op+" rejected", args...)
	}

	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
