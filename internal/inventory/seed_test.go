package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/orderflow-saga/internal/clients"
	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

func catalogServer(t *testing.T, status int, body string) *clients.HTTPProductCatalogClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return clients.NewHTTPProductCatalogClient(srv.URL, srv.Client())
}

func TestSeeder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing rows only", func(t *testing.T) {
		svc, store := newTestService(domain.InventoryItem{ProductID: 101, AvailableQuantity: 2})
		catalog := catalogServer(t, http.StatusOK, `[{"id":101,"name":"mug"},{"id":202,"name":"tee"},{"name":"no id"}]`)

		created, err := NewSeeder(catalog, svc, 25, svc.logger).Seed(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, created)
		assert.Equal(t, 2, available(t, store, 101))
		assert.Equal(t, 25, available(t, store, 202))
	})

	t.Run("negative default quantity seeds zero", func(t *testing.T) {
		svc, store := newTestService()
		catalog := catalogServer(t, http.StatusOK, `[{"id":303,"name":"cap"}]`)

		created, err := NewSeeder(catalog, svc, -4, svc.logger).Seed(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, created)
		assert.Equal(t, 0, available(t, store, 303))
	})

	t.Run("unreachable catalog skips seeding", func(t *testing.T) {
		svc, _ := newTestService()
		catalog := catalogServer(t, http.StatusServiceUnavailable, `{}`)

		created, err := NewSeeder(catalog, svc, 10, svc.logger).Seed(ctx)
		require.NoError(t, err)
		assert.Zero(t, created)
	})

	t.Run("empty catalog", func(t *testing.T) {
		svc, _ := newTestService()
		catalog := catalogServer(t, http.StatusOK, `[]`)

		created, err := NewSeeder(catalog, svc, 10, svc.logger).Seed(ctx)
		require.NoError(t, err)
		assert.Zero(t, created)
	})
}
