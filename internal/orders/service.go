package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/orderflow-saga/internal/clients"
	"github.com/joao-fontenele/orderflow-saga/internal/domain"
	"github.com/joao-fontenele/orderflow-saga/internal/telemetry"
)

var tracer = otel.Tracer("orders/saga")

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Options struct {
	// StepTimeout bounds every order store call.
	StepTimeout time.Duration
	// PublishTimeout bounds the wait for broker acknowledgement.
	PublishTimeout time.Duration
	// CancelTimeout bounds one run of the cancel saga, which outlives the
	// request that started it.
	CancelTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		StepTimeout:    5 * time.Second,
		PublishTimeout: 5 * time.Second,
		CancelTimeout:  30 * time.Second,
	}
}

// Service orchestrates the place and cancel sagas. Each call runs on the
// caller's goroutine and shares no state with other calls; stock is
// protected by the inventory service's row locks.
type Service struct {
	store     OrderStore
	cart      clients.CartClient
	inventory clients.InventoryClient
	users     clients.UserProfileClient
	publisher EventPublisher
	metrics   *telemetry.SagaMetrics
	opts      Options
	logger    *slog.Logger

	// cancels collapses concurrent cancellations of the same order in this
	// process into one saga run.
	cancels singleflight.Group
}

func NewService(
	store OrderStore,
	cart clients.CartClient,
	inventory clients.InventoryClient,
	users clients.UserProfileClient,
	publisher EventPublisher,
	metrics *telemetry.SagaMetrics,
	opts Options,
	logger *slog.Logger,
) *Service {
	if metrics == nil {
		metrics = telemetry.NoopSagaMetrics()
	}
	defaults := DefaultOptions()
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = defaults.StepTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaults.PublishTimeout
	}
	if opts.CancelTimeout <= 0 {
		opts.CancelTimeout = defaults.CancelTimeout
	}

	return &Service{
		store:     store,
		cart:      cart,
		inventory: inventory,
		users:     users,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
		logger:    logger,
	}
}

type PlaceOrderRequest struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
}

// PlaceOrder runs the placement saga. Once inventory confirms the
// reservation the saga no longer observes ctx cancellation: it either
// completes or releases what it reserved.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "PlaceOrder", trace.WithAttributes(attribute.Int64("user.id", req.UserID)))
	defer func() {
		if err != nil {
			kind := KindOf(err)
			s.metrics.PlaceFailed(ctx, kind.String())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req.UserID <= 0 || req.Email == "" {
		return nil, newError(KindInvalid, nil, "userId and email are required")
	}

	cart, err := s.cart.GetCart(ctx, req.UserID)
	if err != nil {
		return nil, newError(KindUnavailable, err, "cart service unavailable")
	}
	if cart.Empty() {
		return nil, newError(KindInvalid, nil, "Cart is empty")
	}
	for _, item := range cart.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, newError(KindInvalid, nil, "Invalid cart item for productId: %d", item.ProductID)
		}
	}

	phone := s.resolvePhone(ctx, req.UserID)

	lines := cart.ReservationLines()
	result, err := s.inventory.Reserve(ctx, lines)
	switch {
	case rejected(err):
		return nil, newError(KindInvalid, err, "inventory rejected the reservation request")
	case err != nil:
		return nil, newError(KindInternal, err, "inventory reservation failed")
	case result.Degraded:
		return nil, newError(KindUnavailable, nil, "%s", result.Message)
	case !result.Success:
		return nil, newError(KindConflict, nil, "%s", result.Message)
	}
	span.AddEvent("inventory reserved")

	ctx = context.WithoutCancel(ctx)

	order = domain.NewOrder(req.UserID, req.Email, cart)
	if err := s.persist(ctx, order); err != nil {
		s.compensate(ctx, req.UserID, lines, err)
		return nil, newError(KindInternal, err, "Order creation failed")
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	s.publish(ctx, domain.TopicOrderPlaced, order.ID, domain.OrderPlacedEvent{
		OrderID:     order.ID,
		Email:       order.Email,
		Phone:       phone,
		TotalAmount: order.TotalAmount,
	})

	if err := s.cart.ClearCart(ctx, req.UserID); err != nil {
		s.logger.Error("failed to clear cart", "error", err, "user_id", req.UserID, "order_id", order.ID)
	}

	s.metrics.OrderPlaced(ctx)
	s.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID, "total", order.TotalAmount.String())
	return order, nil
}

func (s *Service) persist(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	return s.store.Create(ctx, order)
}

// compensate releases a confirmed reservation after a later step failed.
// It runs once and is never retried; a failure leaves stock reserved
// without an order and needs an operator.
func (s *Service) compensate(ctx context.Context, userID int64, lines []domain.ReservationLine, cause error) {
	s.logger.Warn("order placement failed after reservation, releasing inventory", "error", cause, "user_id", userID)

	result, err := s.inventory.Release(ctx, lines)
	if err == nil && result.Success {
		s.metrics.Compensation(ctx, "released")
		s.logger.Info("inventory released by compensation", "user_id", userID)
		return
	}

	reason := result.Message
	if err != nil {
		reason = err.Error()
	}
	s.metrics.Compensation(ctx, "failed")
	s.logger.Error("CRITICAL: inventory release failed during compensation, stock leaked",
		"critical", true,
		"reason", reason,
		"user_id", userID,
		"lines", lines,
		"cause", cause,
	)
}

// CancelOrder runs the cancel saga. CANCELLING is persisted before the
// release so a retry after a crash resumes instead of releasing twice.
// Across instances the conditional PLACED to CANCELLING update decides the
// winner; losers return the order as they find it.
func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "CancelOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	// Collapsed callers share this run, so it must not end with whichever
	// request happened to start it.
	v, err, shared := s.cancels.Do(id, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CancelTimeout)
		defer cancel()
		return s.cancel(runCtx, id)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("cancel.shared", shared))

	order := *v.(*domain.Order)
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return &order, nil
}

func (s *Service) cancel(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusCancelled:
		return order, nil
	case domain.OrderStatusDelivered:
		return nil, newError(KindTerminal, nil, "Delivered orders cannot be cancelled")
	case domain.OrderStatusCancelling:
		s.logger.Info("resuming interrupted cancellation", "order_id", id)
	default:
		err := s.transition(ctx, id, order.Status, domain.OrderStatusCancelling)
		if errors.Is(err, ErrStatusConflict) {
			s.logger.Info("order changed by a concurrent request, returning current state", "order_id", id)
			return s.load(ctx, id)
		}
		if err != nil {
			return nil, newError(KindInternal, err, "Order cancellation failed")
		}
		order.Status = domain.OrderStatusCancelling
	}

	result, err := s.inventory.Release(ctx, order.ReservationLines())
	if err != nil || !result.Success {
		reason := result.Message
		if err != nil {
			reason = err.Error()
		}
		s.logger.Error("failed to release inventory for order", "order_id", id, "reason", reason)
		return nil, newError(KindUnavailable, err, "Inventory release failed")
	}

	err = s.transition(ctx, id, domain.OrderStatusCancelling, domain.OrderStatusCancelled)
	if errors.Is(err, ErrStatusConflict) {
		return s.load(ctx, id)
	}
	if err != nil {
		return nil, newError(KindInternal, err, "Order cancellation failed")
	}
	order.Status = domain.OrderStatusCancelled

	s.publish(ctx, domain.TopicOrderCancelled, order.ID, domain.OrderCancelledEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Email:       order.Email,
		Phone:       s.resolvePhone(ctx, order.UserID),
		TotalAmount: order.TotalAmount,
	})

	s.metrics.OrderCancelled(ctx)
	s.logger.Info("order cancelled", "order_id", id)
	return order, nil
}

// UpdateStatus sets a fulfilment status. CANCELLED goes through the cancel
// saga instead.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, newError(KindInvalid, nil, "unknown status %q", status)
	}

	if status == domain.OrderStatusCancelled {
		return s.CancelOrder(ctx, id)
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case order.Status == domain.OrderStatusCancelled:
		return nil, newError(KindInvalid, nil, "Order is cancelled")
	case !status.Fulfilment():
		return nil, newError(KindInvalid, nil, "status %s cannot be set directly", status)
	case order.Status == domain.OrderStatusCancelling:
		return nil, newError(KindInvalid, nil, "Order is being cancelled")
	case order.Status.Terminal():
		return nil, newError(KindTerminal, nil, "Order is %s", order.Status)
	case order.Status == status:
		return order, nil
	}

	err = s.transition(ctx, id, order.Status, status)
	if errors.Is(err, ErrStatusConflict) {
		return nil, newError(KindConflict, err, "order status changed concurrently")
	}
	if err != nil {
		return nil, newError(KindInternal, err, "status update failed")
	}
	order.Status = status

	s.logger.Info("order status updated", "order_id", id, "status", status)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.load(ctx, id)
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	orders, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, newError(KindInternal, err, "failed to list orders")
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	order, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindNotFound, err, "Order not found")
	}
	if err != nil {
		return nil, newError(KindInternal, err, "failed to load order")
	}
	return order, nil
}

func (s *Service) transition(ctx context.Context, id string, from, to domain.OrderStatus) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	return s.store.TransitionStatus(ctx, id, from, to)
}

// publish is best-effort: the order is already durable when it runs.
func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, topic, key, event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "topic", topic, "order_id", key)
	}
}

// resolvePhone never blocks the saga: any failure yields no phone.
func (s *Service) resolvePhone(ctx context.Context, userID int64) string {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("unable to resolve phone", "error", err, "user_id", userID)
		return ""
	}
	if profile == nil {
		return ""
	}
	return profile.Phone
}

// rejected reports whether a downstream service refused the request as
// malformed rather than failing to serve it.
func rejected(err error) bool {
	var se *clients.StatusError
	return errors.As(err, &se) && se.Rejected()
}
