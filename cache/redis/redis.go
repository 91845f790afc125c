package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/polyglot/cache"
)

// Cache is a Redis-backed cache implementation.
type Cache struct {
	client *redis.Client
	maxAge time.Duration
}

const connectionTimeout = 5 * time.Second

func init() {
	cache.Register("redis", open)
	cache.Register("rediss", open)
}

func open(ctx context.Context, opts ...cache.Option) (cache.RawCache, error) {
	return NewWithContext(ctx, opts...)
}

// New creates a new Redis cache from a redis:// or rediss:// DSN.
func New(opts ...cache.Option) (cache.RawCache, error) {
	return NewWithContext(context.Background(), opts...)
}

// NewWithContext creates a new Redis cache, pinging the server before returning.
func NewWithContext(ctx context.Context, opts ...cache.Option) (cache.RawCache, error) {
	cacheOpts := &cache.Options{}
	for _, opt := range opts {
		opt(cacheOpts)
	}

	redisOpts, err := redis.ParseURL(cacheOpts.DSN.String())
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		_ = client.Close()
		return nil, pingErr
	}

	return &Cache{
		client: client,
		maxAge: cacheOpts.MaxAge,
	}, nil
}

// Get retrieves an item from the cache.
func (rc *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set sets an item in the cache with the specified TTL.
func (rc *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rc.maxAge
	}
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// Expire updates the TTL of an existing key.
func (rc *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return rc.client.Expire(ctx, key, ttl).Err()
}

func (rc *Cache) SupportsPerKeyTTL() bool {
	return true
}

// Delete removes an item from the cache.
func (rc *Cache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

// Exists checks if a key exists in the cache.
func (rc *Cache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := rc.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Flush clears all items from the cache.
func (rc *Cache) Flush(ctx context.Context) error {
	return rc.client.FlushDB(ctx).Err()
}

// Close closes the Redis connection.
func (rc *Cache) Close() error {
	return rc.client.Close()
}

// Increment atomically increments a counter.
func (rc *Cache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return rc.client.IncrBy(ctx, key, delta).Result()
}

// Decrement atomically decrements a counter.
func (rc *Cache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return rc.client.DecrBy(ctx, key, delta).Result()
}
