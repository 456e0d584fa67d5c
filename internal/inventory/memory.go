package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

// MemoryStore keeps inventory rows in process. Row locks are per-product
// mutexes held by the transaction that took them until it ends; staged
// writes become visible only on commit.
type MemoryStore struct {
	mu    sync.Mutex
	items map[int64]domain.InventoryItem
	rows  map[int64]*sync.Mutex
}

func NewMemoryStore(items ...domain.InventoryItem) *MemoryStore {
	s := &MemoryStore{
		items: make(map[int64]domain.InventoryItem, len(items)),
		rows:  make(map[int64]*sync.Mutex),
	}
	for _, item := range items {
		s.items[item.ProductID] = item
	}
	return s
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{
		store:  s,
		held:   make(map[int64]*sync.Mutex),
		staged: make(map[int64]domain.InventoryItem),
	}
	defer tx.unlockAll()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	for id, item := range tx.staged {
		s.items[id] = item
	}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Get(_ context.Context, productID int64) (*domain.InventoryItem, error) {
	item, ok := s.load(productID)
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *MemoryStore) Create(_ context.Context, item domain.InventoryItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ProductID]; ok {
		return false, nil
	}
	s.items[item.ProductID] = item
	return true, nil
}

func (s *MemoryStore) load(productID int64) (domain.InventoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[productID]
	return item, ok
}

func (s *MemoryStore) rowLock(productID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.rows[productID]
	if !ok {
		l = &sync.Mutex{}
		s.rows[productID] = l
	}
	return l
}

type memoryTx struct {
	store  *MemoryStore
	held   map[int64]*sync.Mutex
	staged map[int64]domain.InventoryItem
}

func (t *memoryTx) Lock(_ context.Context, productID int64) (*domain.InventoryItem, error) {
	if _, ok := t.held[productID]; !ok {
		l := t.store.rowLock(productID)
		l.Lock()
		t.held[productID] = l
	}

	if item, ok := t.staged[productID]; ok {
		return &item, nil
	}
	item, ok := t.store.load(productID)
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (t *memoryTx) Save(_ context.Context, item *domain.InventoryItem) error {
	if _, ok := t.held[item.ProductID]; !ok {
		return fmt.Errorf("inventory item %d saved without lock", item.ProductID)
	}
	t.staged[item.ProductID] = *item
	return nil
}

func (t *memoryTx) unlockAll() {
	for _, l := range t.held {
		l.Unlock()
	}
}
