package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type HTTPProductCatalogClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProductCatalogClient(baseURL string, client *http.Client) *HTTPProductCatalogClient {
	return &HTTPProductCatalogClient{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *HTTPProductCatalogClient) ListProducts(ctx context.Context) ([]domain.ProductSnapshot, error) {
	req, err := newJSONRequest(ctx, http.MethodGet, c.baseURL+"/products", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "product", StatusCode: resp.StatusCode}
	}

	var products []domain.ProductSnapshot
	if err := decodeJSON(resp, &products); err != nil {
		return nil, err
	}
	return products, nil
}
