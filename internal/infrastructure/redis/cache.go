package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache backs the account snapshot cache with a namespaced Redis
// keyspace. A missing key reports a miss rather than an error, so the
// caching decorator can fall through to Postgres without inspecting
// redis.Nil itself.
type RedisCache struct {
	r      redis.Cmdable
	prefix string
}

// NewRedisCache creates a Redis-backed cache. Keys are namespaced under
// prefix ("metering" when empty) to keep snapshots apart from the webhook
// dedup keys sharing the instance.
func NewRedisCache(r redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "metering"
	}
	return &RedisCache{r: r, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

// Get implements Cache.Get.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.r.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements Cache.Set.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.r.Set(ctx, c.key(key), value, ttl).Err()
}

// Delete implements Cache.Delete.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.r.Del(ctx, c.key(key)).Err()
}
