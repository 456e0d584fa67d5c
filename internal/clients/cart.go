package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type HTTPCartClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCartClient(baseURL string, client *http.Client) *HTTPCartClient {
	return &HTTPCartClient{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *HTTPCartClient) GetCart(ctx context.Context, userID int64) (domain.CartSnapshot, error) {
	req, err := newJSONRequest(ctx, http.MethodGet, fmt.Sprintf("%s/cart/%d", c.baseURL, userID), nil)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("get cart for user %d: %w", userID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return domain.CartSnapshot{UserID: userID}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return domain.CartSnapshot{}, &StatusError{Service: "cart", StatusCode: resp.StatusCode}
	}

	var cart domain.CartSnapshot
	if err := decodeJSON(resp, &cart); err != nil {
		return domain.CartSnapshot{}, err
	}

	return cart, nil
}

func (c *HTTPCartClient) ClearCart(ctx context.Context, userID int64) error {
	req, err := newJSONRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/cart/%d", c.baseURL, userID), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("clear cart for user %d: %w", userID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}

	return &StatusError{Service: "cart", StatusCode: resp.StatusCode}
}
