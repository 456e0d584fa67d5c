package clients

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

const inventoryUnavailable = "Inventory service unavailable"

// FallbackCartClient answers with an empty cart, which makes order
// placement fail as an input error instead of guessing cart contents.
type FallbackCartClient struct {
	logger *slog.Logger
}

func NewFallbackCartClient(logger *slog.Logger) *FallbackCartClient {
	return &FallbackCartClient{logger: logger}
}

func (c *FallbackCartClient) GetCart(_ context.Context, userID int64) (domain.CartSnapshot, error) {
	c.logger.Warn("cart service unavailable, using empty cart", "user_id", userID)
	return domain.CartSnapshot{UserID: userID}, nil
}

func (c *FallbackCartClient) ClearCart(_ context.Context, userID int64) error {
	c.logger.Warn("cart service unavailable, cart not cleared", "user_id", userID)
	return nil
}

// FallbackInventoryClient never guesses stock: every call fails with a
// degraded result.
type FallbackInventoryClient struct {
	logger *slog.Logger
}

func NewFallbackInventoryClient(logger *slog.Logger) *FallbackInventoryClient {
	return &FallbackInventoryClient{logger: logger}
}

func (c *FallbackInventoryClient) Reserve(_ context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	c.logger.Warn("inventory service unavailable, cannot reserve", "lines", len(lines))
	return degraded(), nil
}

func (c *FallbackInventoryClient) Release(_ context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	c.logger.Warn("inventory service unavailable, cannot release", "lines", len(lines))
	return degraded(), nil
}

func degraded() domain.ReservationResult {
	result := domain.Rejected(inventoryUnavailable)
	result.Degraded = true
	return result
}

type FallbackUserProfileClient struct {
	logger *slog.Logger
}

func NewFallbackUserProfileClient(logger *slog.Logger) *FallbackUserProfileClient {
	return &FallbackUserProfileClient{logger: logger}
}

func (c *FallbackUserProfileClient) GetProfile(_ context.Context, authUserID int64) (*domain.UserProfile, error) {
	c.logger.Warn("user service unavailable, profile absent", "auth_user_id", authUserID)
	return nil, nil
}
