package orders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

func newTestMux(f *sagaFixture) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(f.svc, discardLogger()).Register(mux)
	return mux
}

func TestHandler_HandleCreate(t *testing.T) {
	tests := []struct {
		name   string
		stock  int
		cart   bool
		body   string
		status int
	}{
		{"created", 5, true, `{"userId":7,"email":"ada@example.com"}`, http.StatusCreated},
		{"empty cart", 5, false, `{"userId":7,"email":"ada@example.com"}`, http.StatusBadRequest},
		{"insufficient stock", 1, true, `{"userId":7,"email":"ada@example.com"}`, http.StatusConflict},
		{"invalid body", 5, true, `{"userId":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSagaFixture(domain.InventoryItem{ProductID: 101, AvailableQuantity: tt.stock})
			if tt.cart {
				f.cart.set(7, cartItem(101, 2, "10.00"))
			}

			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newTestMux(f).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_HandleCreate_ReturnsOrder(t *testing.T) {
	f := newSagaFixture(domain.InventoryItem{ProductID: 101, AvailableQuantity: 5})
	f.cart.set(7, cartItem(101, 2, "10.00"))

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"userId":7,"email":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	newTestMux(f).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "PLACED" {
		t.Errorf("expected status PLACED, got %v", body["status"])
	}
	if body["totalAmount"] != "20" {
		t.Errorf("expected totalAmount 20, got %v", body["totalAmount"])
	}
	if body["orderId"] == "" {
		t.Error("expected order id")
	}
}

func TestHandler_HandleCreate_InventoryUnavailable(t *testing.T) {
	f := newSagaFixture(domain.InventoryItem{ProductID: 101, AvailableQuantity: 5})
	f.cart.set(7, cartItem(101, 2, "10.00"))
	f.inventory.unavailable = true

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"userId":7,"email":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	newTestMux(f).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}

func TestHandler_HandleCreate_SagaFailure(t *testing.T) {
	f := newSagaFixture(domain.InventoryItem{ProductID: 101, AvailableQuantity: 5})
	f.cart.set(7, cartItem(101, 2, "10.00"))
	f.store.createErr = errInjected

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"userId":7,"email":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	newTestMux(f).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if f.available(101) != 5 {
		t.Errorf("expected stock released back to 5, got %d", f.available(101))
	}
}

func TestHandler_HandleCancel(t *testing.T) {
	tests := []struct {
		name   string
		status domain.OrderStatus
		want   int
	}{
		{"placed", domain.OrderStatusPlaced, http.StatusOK},
		{"already cancelled", domain.OrderStatusCancelled, http.StatusOK},
		{"delivered", domain.OrderStatusDelivered, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSagaFixture(domain.InventoryItem{ProductID: 202, AvailableQuantity: 10})
			id := f.store.put(placedOrder(7, tt.status, orderItem(202, 3)))

			req := httptest.NewRequest(http.MethodPost, "/orders/"+id+"/cancel", nil)
			rec := httptest.NewRecorder()
			newTestMux(f).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("unknown order", func(t *testing.T) {
		f := newSagaFixture()

		req := httptest.NewRequest(http.MethodPost, "/orders/nope/cancel", nil)
		rec := httptest.NewRecorder()
		newTestMux(f).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("inventory unavailable", func(t *testing.T) {
		f := newSagaFixture(domain.InventoryItem{ProductID: 202, AvailableQuantity: 10})
		id := f.store.put(placedOrder(7, domain.OrderStatusPlaced, orderItem(202, 3)))
		f.inventory.releaseFails = true

		req := httptest.NewRequest(http.MethodPost, "/orders/"+id+"/cancel", nil)
		rec := httptest.NewRecorder()
		newTestMux(f).ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		current domain.OrderStatus
		body    string
		want    int
	}{
		{"shipped", domain.OrderStatusProcessing, `{"status":"SHIPPED"}`, http.StatusOK},
		{"cancel through status", domain.OrderStatusPlaced, `{"status":"CANCELLED"}`, http.StatusOK},
		{"cancelled order", domain.OrderStatusCancelled, `{"status":"SHIPPED"}`, http.StatusBadRequest},
		{"unknown status", domain.OrderStatusPlaced, `{"status":"TELEPORTED"}`, http.StatusBadRequest},
		{"invalid body", domain.OrderStatusPlaced, `[`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSagaFixture(domain.InventoryItem{ProductID: 202, AvailableQuantity: 10})
			id := f.store.put(placedOrder(7, tt.current, orderItem(202, 3)))

			req := httptest.NewRequest(http.MethodPatch, "/orders/"+id+"/status", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newTestMux(f).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_HandleGetAndList(t *testing.T) {
	f := newSagaFixture()
	id := f.store.put(placedOrder(7, domain.OrderStatusPlaced, orderItem(202, 3)))
	mux := newTestMux(f)

	t.Run("get", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/"+id, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var order domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if order.ID != id || len(order.Items) != 1 {
			t.Errorf("unexpected order: %+v", order)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("list by user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/user/7", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var orders []domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&orders); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(orders) != 1 {
			t.Errorf("expected 1 order, got %d", len(orders))
		}
	})

	t.Run("list with bad user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/user/abc", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalid, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindTerminal, http.StatusBadRequest},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.HTTPStatus(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
