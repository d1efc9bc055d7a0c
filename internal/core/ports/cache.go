package ports

import (
	"context"
	"time"
)

// Cache is the key-value contract behind the account snapshot cache. A cache
// error must never surface to callers as a hard failure; the caching
// decorators fall back to the primary store instead.
type Cache interface {
	// Get returns the raw bytes for key. ok=false if not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for key with TTL (0 or negative means no expiration if supported).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key; absence is not an error.
	Delete(ctx context.Context, key string) error
}
