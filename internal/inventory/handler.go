package inventory

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
	mux.HandleFunc("GET /inventory/{productId}", h.HandleGet)
	mux.HandleFunc("POST /inventory/reserve", h.HandleReserve)
	mux.HandleFunc("POST /inventory/release", h.HandleRelease)
	mux.HandleFunc("POST /inventory/{productId}/adjust", h.HandleAdjust)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	item, err := h.svc.Get(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to get inventory item", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if item == nil {
		h.writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req domain.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, domain.Rejected("invalid request body"))
		return
	}

	result, err := h.svc.Reserve(r.Context(), req.Items)
	if err != nil {
		h.writeBatchError(w, "reserve", err)
		return
	}

	if !result.Success {
		h.writeJSON(w, http.StatusConflict, result)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	var req domain.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, domain.Rejected("invalid request body"))
		return
	}

	result, err := h.svc.Release(r.Context(), req.Items)
	if err != nil {
		h.writeBatchError(w, "release", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.svc.Adjust(r.Context(), productID, req.Delta)
	switch {
	case errors.Is(err, ErrItemNotFound):
		h.writeError(w, http.StatusNotFound, "item not found")
		return
	case errors.Is(err, ErrNegativeStock):
		h.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to adjust stock", "error", err, "product_id", productID, "delta", req.Delta)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(r.PathValue("productId"), 10, 64)
	if err != nil || productID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return productID, true
}

func (h *Handler) writeBatchError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrInvalidBatch) {
		h.writeJSON(w, http.StatusBadRequest, domain.Rejected("items must name a product and a positive quantity"))
		return
	}
	h.logger.Error("failed to "+op+" inventory", "error", err)
	h.writeJSON(w, http.StatusInternalServerError, domain.Rejected("internal server error"))
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
