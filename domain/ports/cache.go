package ports

import (
	"context"
	"time"
)

// Cache is the process-wide key/value store scripts reach through cache_get and cache_set.
// Implementations synchronize internally.
type Cache interface {
	// Get returns the value stored under key. ok is false when the key is absent or expired.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)

	// Set stores value under key. A zero ttl means the entry never expires.
	Set(ctx context.Context, key, value []byte, ttl time.Duration) error
}
