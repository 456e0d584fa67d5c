// Package clients holds the facades the orders service uses to reach the
// cart, inventory and user-profile services. Every facade has a live HTTP
// variant and a fallback variant that answers when the live one cannot.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type CartClient interface {
	GetCart(ctx context.Context, userID int64) (domain.CartSnapshot, error)
	ClearCart(ctx context.Context, userID int64) error
}

type InventoryClient interface {
	Reserve(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error)
	Release(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error)
}

// UserProfileClient resolves a profile by auth user id. A nil profile with a
// nil error means the profile is unknown or could not be fetched.
type UserProfileClient interface {
	GetProfile(ctx context.Context, authUserID int64) (*domain.UserProfile, error)
}

// StatusError is an unexpected HTTP status from a downstream service.
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s service returned status %d", e.Service, e.StatusCode)
}

// Rejected reports whether the remote refused the request itself, as
// opposed to failing to serve it. Rejections never trip the breaker and
// never fall back.
func (e *StatusError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func isRejection(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Rejected()
}

func newJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func decodeJSON(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
