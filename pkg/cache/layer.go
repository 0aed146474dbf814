package cache

import (
	"context"
	"time"
)

// Layer is one tier of the lookup cache. Implementations must treat
// their own unavailability as a miss, not a failure of the lookup.
type Layer interface {
	Name() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
