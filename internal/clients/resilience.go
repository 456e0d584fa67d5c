package clients

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

// Policy configures the breaker and retry behaviour of one facade.
type Policy struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a probe.
	OpenTimeout time.Duration
	// ReadRetries is the number of extra attempts for idempotent reads.
	// Writes are never retried.
	ReadRetries uint
	// RetryInterval is the initial backoff between read attempts.
	RetryInterval time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		ReadRetries:      2,
		RetryInterval:    100 * time.Millisecond,
	}
}

type guard[T any] struct {
	name   string
	cb     *gobreaker.CircuitBreaker[T]
	policy Policy
	logger *slog.Logger
}

func newGuard[T any](name string, policy Policy, logger *slog.Logger) *guard[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     policy.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= max(1, policy.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isRejection(err) || errors.Is(err, context.Canceled)
		},
	}

	return &guard[T]{
		name:   name,
		cb:     gobreaker.NewCircuitBreaker[T](settings),
		policy: policy,
		logger: logger,
	}
}

// do runs op through the breaker. Transport failures and an open circuit
// resolve to the fallback; rejections are returned to the caller.
func (g *guard[T]) do(ctx context.Context, retry bool, op func(context.Context) (T, error), fallback func() (T, error)) (T, error) {
	attempt := func() (T, error) {
		v, err := g.cb.Execute(func() (T, error) { return op(ctx) })
		if err != nil && (isRejection(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	var v T
	var err error
	if retry && g.policy.ReadRetries > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = g.policy.RetryInterval
		v, err = backoff.Retry(ctx, attempt,
			backoff.WithBackOff(b),
			backoff.WithMaxTries(g.policy.ReadRetries+1),
		)
	} else {
		v, err = attempt()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
	}

	if err == nil || isRejection(err) {
		return v, err
	}

	g.logger.Warn("downstream call failed, using fallback", "client", g.name, "error", err)
	return fallback()
}

type ResilientCartClient struct {
	live     CartClient
	fallback CartClient
	get      *guard[domain.CartSnapshot]
	clear    *guard[struct{}]
}

func NewResilientCartClient(live, fallback CartClient, policy Policy, logger *slog.Logger) *ResilientCartClient {
	return &ResilientCartClient{
		live:     live,
		fallback: fallback,
		get:      newGuard[domain.CartSnapshot]("cart", policy, logger),
		clear:    newGuard[struct{}]("cart-clear", policy, logger),
	}
}

func (c *ResilientCartClient) GetCart(ctx context.Context, userID int64) (domain.CartSnapshot, error) {
	return c.get.do(ctx, true,
		func(ctx context.Context) (domain.CartSnapshot, error) { return c.live.GetCart(ctx, userID) },
		func() (domain.CartSnapshot, error) { return c.fallback.GetCart(ctx, userID) },
	)
}

func (c *ResilientCartClient) ClearCart(ctx context.Context, userID int64) error {
	_, err := c.clear.do(ctx, false,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, c.live.ClearCart(ctx, userID) },
		func() (struct{}, error) { return struct{}{}, c.fallback.ClearCart(ctx, userID) },
	)
	return err
}

// ResilientInventoryClient never retries: reserve and release are not
// idempotent.
type ResilientInventoryClient struct {
	live     InventoryClient
	fallback InventoryClient
	guard    *guard[domain.ReservationResult]
}

func NewResilientInventoryClient(live, fallback InventoryClient, policy Policy, logger *slog.Logger) *ResilientInventoryClient {
	return &ResilientInventoryClient{
		live:     live,
		fallback: fallback,
		guard:    newGuard[domain.ReservationResult]("inventory", policy, logger),
	}
}

func (c *ResilientInventoryClient) Reserve(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	return c.guard.do(ctx, false,
		func(ctx context.Context) (domain.ReservationResult, error) { return c.live.Reserve(ctx, lines) },
		func() (domain.ReservationResult, error) { return c.fallback.Reserve(ctx, lines) },
	)
}

func (c *ResilientInventoryClient) Release(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	return c.guard.do(ctx, false,
		func(ctx context.Context) (domain.ReservationResult, error) { return c.live.Release(ctx, lines) },
		func() (domain.ReservationResult, error) { return c.fallback.Release(ctx, lines) },
	)
}

type ResilientUserProfileClient struct {
	live     UserProfileClient
	fallback UserProfileClient
	guard    *guard[*domain.UserProfile]
}

func NewResilientUserProfileClient(live, fallback UserProfileClient, policy Policy, logger *slog.Logger) *ResilientUserProfileClient {
	return &ResilientUserProfileClient{
		live:     live,
		fallback: fallback,
		guard:    newGuard[*domain.UserProfile]("user", policy, logger),
	}
}

func (c *ResilientUserProfileClient) GetProfile(ctx context.Context, authUserID int64) (*domain.UserProfile, error) {
	return c.guard.do(ctx, true,
		func(ctx context.Context) (*domain.UserProfile, error) { return c.live.GetProfile(ctx, authUserID) },
		func() (*domain.UserProfile, error) { return c.fallback.GetProfile(ctx, authUserID) },
	)
}
