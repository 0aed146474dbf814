package cache

import (
	"context"
	"log"
	"time"
)

// Layered reads through a stack of cache layers ordered fast to slow.
// A hit on an outer layer is backfilled into the inner layers with a
// shorter TTL. A failing layer counts as a miss on that layer only and
// never fails the overall operation.
type Layered struct {
	layers      []Layer
	backfillTTL time.Duration
	logger      *log.Logger
}

func NewLayered(logger *log.Logger, backfillTTL time.Duration, layers ...Layer) *Layered {
	return &Layered{
		layers:      layers,
		backfillTTL: backfillTTL,
		logger:      logger,
	}
}

// Get checks each layer in order. On a hit past the first layer, the
// value is written back into every faster layer.
func (c *Layered) Get(ctx context.Context, key string) (string, bool) {
	for i, layer := range c.layers {
		val, found, err := layer.Get(ctx, key)
		if err != nil {
			c.logger.Printf("[WARN] cache layer %s get failed for %q: %v", layer.Name(), key, err)
			continue
		}
		if !found {
			continue
		}
		c.backfill(ctx, key, val, i)
		return val, true
	}
	return "", false
}

func (c *Layered) backfill(ctx context.Context, key, value string, hitIndex int) {
	for j := 0; j < hitIndex; j++ {
		if err := c.layers[j].Set(ctx, key, value, c.backfillTTL); err != nil {
			c.logger.Printf("[WARN] cache layer %s backfill failed for %q: %v", c.layers[j].Name(), key, err)
		}
	}
}

// Set writes to every layer.
func (c *Layered) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	for _, layer := range c.layers {
		if err := layer.Set(ctx, key, value, ttl); err != nil {
			c.logger.Printf("[WARN] cache layer %s set failed for %q: %v", layer.Name(), key, err)
		}
	}
}

// Delete removes the key from every layer.
func (c *Layered) Delete(ctx context.Context, key string) {
	for _, layer := range c.layers {
		if err := layer.Delete(ctx, key); err != nil {
			c.logger.Printf("[WARN] cache layer %s delete failed for %q: %v", layer.Name(), key, err)
		}
	}
}
