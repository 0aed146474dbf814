package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLayer is the fast in-process tier, bounded by TTL.
type MemoryLayer struct {
	cache *gocache.Cache
}

func NewMemoryLayer(defaultTTL, cleanupInterval time.Duration) *MemoryLayer {
	return &MemoryLayer{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (l *MemoryLayer) Name() string {
	return "memory"
}

func (l *MemoryLayer) Get(_ context.Context, key string) (string, bool, error) {
	if x, found := l.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (l *MemoryLayer) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	l.cache.Set(key, value, ttl)
	return nil
}

func (l *MemoryLayer) Delete(_ context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}
