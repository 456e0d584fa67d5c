package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type HTTPUserProfileClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUserProfileClient(baseURL string, client *http.Client) *HTTPUserProfileClient {
	return &HTTPUserProfileClient{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *HTTPUserProfileClient) GetProfile(ctx context.Context, authUserID int64) (*domain.UserProfile, error) {
	req, err := newJSONRequest(ctx, http.MethodGet, fmt.Sprintf("%s/users/by-auth/%d", c.baseURL, authUserID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get profile for user %d: %w", authUserID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "user", StatusCode: resp.StatusCode}
	}

	var profile domain.UserProfile
	if err := decodeJSON(resp, &profile); err != nil {
		return nil, err
	}

	return &profile, nil
}
