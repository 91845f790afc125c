package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pitabwire/polyglot/internal"
)

// RawCache stores byte values. Every backend implements it.
type RawCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Close() error
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Decrement(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	SupportsPerKeyTTL() bool
}

// Cache stores typed values over a RawCache. It does not own the backend.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool, error)
	Set(ctx context.Context, key K, value V, ttl time.Duration) error
	Delete(ctx context.Context, key K) error
}

type codecCache[K comparable, V any] struct {
	raw     RawCache
	keyFunc func(K) string
}

// NewGenericCache serialises values of V into raw. A nil keyFunc formats keys with %v.
func NewGenericCache[K comparable, V any](raw RawCache, keyFunc func(K) string) Cache[K, V] {
	if keyFunc == nil {
		keyFunc = func(k K) string { return fmt.Sprint(k) }
	}
	return &codecCache[K, V]{raw: raw, keyFunc: keyFunc}
}

// PrefixKey namespaces string keys so several typed caches can share one backend.
func PrefixKey(prefix string) func(string) string {
	return func(k string) string {
		return prefix + ":" + k
	}
}

func (c *codecCache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var value V

	payload, found, err := c.raw.Get(ctx, c.keyFunc(key))
	if err != nil || !found {
		return value, false, err
	}
	if err = internal.Unmarshal(payload, &value); err != nil {
		var zero V
		return zero, false, fmt.Errorf("cache: decode %v: %w", key, err)
	}
	return value, true, nil
}

func (c *codecCache[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) error {
	payload, err := internal.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %v: %w", key, err)
	}
	return c.raw.Set(ctx, c.keyFunc(key), payload, ttl)
}

func (c *codecCache[K, V]) Delete(ctx context.Context, key K) error {
	return c.raw.Delete(ctx, c.keyFunc(key))
}
