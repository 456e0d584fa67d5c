package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type HTTPInventoryClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPInventoryClient(baseURL string, client *http.Client) *HTTPInventoryClient {
	return &HTTPInventoryClient{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *HTTPInventoryClient) Reserve(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	return c.post(ctx, "/inventory/reserve", lines)
}

func (c *HTTPInventoryClient) Release(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	return c.post(ctx, "/inventory/release", lines)
}

// post sends a reservation batch. A 409 carries a business rejection in the
// body and is returned as a result, not an error.
func (c *HTTPInventoryClient) post(ctx context.Context, path string, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+path, domain.ReservationRequest{Items: lines})
	if err != nil {
		return domain.ReservationResult{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ReservationResult{}, fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict:
		var result domain.ReservationResult
		if err := decodeJSON(resp, &result); err != nil {
			return domain.ReservationResult{}, err
		}
		return result, nil
	}

	return domain.ReservationResult{}, &StatusError{Service: "inventory", StatusCode: resp.StatusCode}
}
