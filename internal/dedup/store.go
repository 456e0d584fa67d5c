// Package dedup guards event handlers against redelivered messages with a
// seen-set whose entries expire after a retention window.
package dedup

import (
	"context"
	"time"
)

// Store is a seen-set with a single atomic insert-if-absent primitive.
type Store interface {
	// Claim records key for ttl and reports whether this call inserted it.
	// Concurrent claims of the same key succeed for exactly one caller.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
