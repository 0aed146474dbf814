package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLayer is the shared outer tier, used across instances. Entries
// written here outlive the in-process tier, so writes carry at least
// minTTL even when the caller asked for a shorter lifetime.
type RedisLayer struct {
	rdb    *redis.Client
	prefix string
	minTTL time.Duration
}

func NewRedisLayer(rdb *redis.Client, prefix string, minTTL time.Duration) *RedisLayer {
	return &RedisLayer{rdb: rdb, prefix: prefix, minTTL: minTTL}
}

func (l *RedisLayer) Name() string {
	return "redis"
}

func (l *RedisLayer) key(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

func (l *RedisLayer) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := l.rdb.Get(ctx, l.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (l *RedisLayer) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return l.rdb.Set(ctx, l.key(key), value, l.writeTTL(ttl)).Err()
}

func (l *RedisLayer) writeTTL(ttl time.Duration) time.Duration {
	if ttl < l.minTTL {
		return l.minTTL
	}
	return ttl
}

func (l *RedisLayer) Delete(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.key(key)).Err()
}
