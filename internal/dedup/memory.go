package dedup

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps the seen-set in process. It only deduplicates
// deliveries that reach the same instance.
type MemoryStore struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewMemoryStore bounds the set to capacity entries; the oldest entry is
// evicted first when it is full. A zero capacity means unbounded.
func NewMemoryStore(capacity uint64) *MemoryStore {
	opts := []ttlcache.Option[string, struct{}]{
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, struct{}](capacity))
	}

	cache := ttlcache.New[string, struct{}](opts...)
	go cache.Start()

	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	_, found := s.cache.GetOrSet(key, struct{}{}, ttlcache.WithTTL[string, struct{}](ttl))
	return !found, nil
}

func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() {
	s.cache.Stop()
}
