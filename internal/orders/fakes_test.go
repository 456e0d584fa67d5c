package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
	"github.com/joao-fontenele/orderflow-saga/internal/inventory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryOrderStore struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	createErr error
}

func newMemoryOrderStore() *memoryOrderStore {
	return &memoryOrderStore{orders: make(map[string]domain.Order)}
}

func (s *memoryOrderStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	order.ID = uuid.New().String()
	s.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (s *memoryOrderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneOrder(order)
	return &clone, nil
}

func (s *memoryOrderStore) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []domain.Order{}
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, cloneOrder(order))
		}
	}
	return orders, nil
}

func (s *memoryOrderStore) TransitionStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return ErrStatusConflict
	}
	order.Status = to
	s.orders[id] = order
	return nil
}

func (s *memoryOrderStore) put(order domain.Order) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	s.orders[order.ID] = cloneOrder(order)
	return order.ID
}

func (s *memoryOrderStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memoryOrderStore) status(id string) domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

type fakeCart struct {
	mu      sync.Mutex
	carts   map[int64]domain.CartSnapshot
	cleared []int64
	getErr  error
}

func newFakeCart() *fakeCart {
	return &fakeCart{carts: make(map[int64]domain.CartSnapshot)}
}

func (c *fakeCart) GetCart(_ context.Context, userID int64) (domain.CartSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return domain.CartSnapshot{}, c.getErr
	}
	return c.carts[userID], nil
}

func (c *fakeCart) ClearCart(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleared = append(c.cleared, userID)
	delete(c.carts, userID)
	return nil
}

func (c *fakeCart) set(userID int64, items ...domain.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[userID] = domain.CartSnapshot{UserID: userID, Items: items}
}

// engineClient reaches the reservation engine in process and records every
// batch it is asked to release.
type engineClient struct {
	engine *inventory.Service

	mu           sync.Mutex
	reserves     int
	reserveErr   error
	releases     [][]domain.ReservationLine
	releaseErr   error
	releaseFails bool
	unavailable  bool
}

func (c *engineClient) Reserve(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	c.mu.Lock()
	c.reserves++
	unavailable, reserveErr := c.unavailable, c.reserveErr
	c.mu.Unlock()

	if reserveErr != nil {
		return domain.ReservationResult{}, reserveErr
	}
	if unavailable {
		return domain.ReservationResult{Success: false, Message: "Inventory service unavailable", Degraded: true}, nil
	}
	return c.engine.Reserve(ctx, lines)
}

func (c *engineClient) Release(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	c.mu.Lock()
	c.releases = append(c.releases, append([]domain.ReservationLine(nil), lines...))
	releaseErr, releaseFails := c.releaseErr, c.releaseFails
	c.mu.Unlock()

	if releaseErr != nil {
		return domain.ReservationResult{}, releaseErr
	}
	if releaseFails {
		return domain.ReservationResult{Success: false, Message: "Inventory service unavailable", Degraded: true}, nil
	}
	return c.engine.Release(ctx, lines)
}

func (c *engineClient) releaseCalls() [][]domain.ReservationLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]domain.ReservationLine(nil), c.releases...)
}

type fakeUsers struct {
	profiles map[int64]*domain.UserProfile
	err      error
}

func (u *fakeUsers) GetProfile(_ context.Context, authUserID int64) (*domain.UserProfile, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.profiles[authUserID], nil
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *fakePublisher) published(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []publishedEvent
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type sagaFixture struct {
	svc       *Service
	store     *memoryOrderStore
	stock     *inventory.MemoryStore
	cart      *fakeCart
	inventory *engineClient
	users     *fakeUsers
	publisher *fakePublisher
}

func newSagaFixture(items ...domain.InventoryItem) *sagaFixture {
	logger := discardLogger()
	stock := inventory.NewMemoryStore(items...)
	f := &sagaFixture{
		store:     newMemoryOrderStore(),
		stock:     stock,
		cart:      newFakeCart(),
		inventory: &engineClient{engine: inventory.NewService(stock, logger)},
		users:     &fakeUsers{profiles: map[int64]*domain.UserProfile{7: {AuthUserID: 7, Phone: "+15550100"}}},
		publisher: &fakePublisher{},
	}
	f.svc = NewService(f.store, f.cart, f.inventory, f.users, f.publisher, nil, Options{}, logger)
	return f
}

func (f *sagaFixture) available(productID int64) int {
	item, err := f.stock.Get(context.Background(), productID)
	if err != nil || item == nil {
		return -1
	}
	return item.AvailableQuantity
}

func cartItem(productID int64, quantity int, unitPrice string) domain.CartItem {
	return domain.CartItem{
		ProductID:   productID,
		ProductName: "product",
		UnitPrice:   decimal.RequireFromString(unitPrice),
		Quantity:    quantity,
	}
}

var errInjected = errors.New("injected failure")
