package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/polyglot/cache"
)

const (
	defaultWindowPrefix = "ratelimit"
	windowTTLSlack      = time.Second
)

var (
	ErrCacheRequired                = errors.New("cache backend is required")
	ErrCacheDoesNotSupportPerKeyTTL = errors.New("cache backend does not support per-key TTL")
	ErrInvalidWindow                = errors.New("window limit must be positive and span at least a second")
)

// WindowOption configures a WindowLimiter.
type WindowOption func(*WindowLimiter)

// WithKeyPrefix namespaces the window counters in a shared cache.
func WithKeyPrefix(prefix string) WindowOption {
	return func(wl *WindowLimiter) {
		if prefix != "" {
			wl.prefix = prefix
		}
	}
}

// WithFailOpen admits requests when the cache cannot be reached.
func WithFailOpen() WindowOption {
	return func(wl *WindowLimiter) {
		wl.failOpen = true
	}
}

// WindowLimiter admits at most limit requests per key in each fixed window.
// Counters live in a cache.RawCache so replicas sharing redis or valkey share
// the budget.
type WindowLimiter struct {
	raw      cache.RawCache
	limit    int
	window   time.Duration
	prefix   string
	failOpen bool
}

// NewWindowLimiter creates a limiter counting in raw.
func NewWindowLimiter(raw cache.RawCache, limit int, window time.Duration, opts ...WindowOption) (*WindowLimiter, error) {
	if raw == nil {
		return nil, ErrCacheRequired
	}
	if !raw.SupportsPerKeyTTL() {
		return nil, ErrCacheDoesNotSupportPerKeyTTL
	}
	if limit <= 0 || window < time.Second {
		return nil, fmt.Errorf("%w: %d per %s", ErrInvalidWindow, limit, window)
	}

	wl := &WindowLimiter{raw: raw, limit: limit, window: window, prefix: defaultWindowPrefix}
	for _, opt := range opts {
		opt(wl)
	}
	return wl, nil
}

// Limit is the number of requests admitted per window.
func (wl *WindowLimiter) Limit() int {
	return wl.limit
}

// Window is the length of one counting window.
func (wl *WindowLimiter) Window() time.Duration {
	return wl.window
}

// Allow counts one request for key and reports whether it is within the limit.
func (wl *WindowLimiter) Allow(ctx context.Context, key string) bool {
	if wl == nil {
		return true
	}
	if key == "" {
		key = unknownCallerName
	}

	counter := wl.counterKey(key, time.Now())
	count, err := wl.raw.Increment(ctx, counter, 1)
	if err != nil {
		util.Log(ctx).WithError(err).WithField("key", key).Warn("rate limit counter unavailable")
		return wl.failOpen
	}

	if count == 1 {
		if err = wl.raw.Expire(ctx, counter, wl.window+windowTTLSlack); err != nil {
			util.Log(ctx).WithError(err).WithField("key", key).Warn("rate limit counter ttl not set")
		}
	}

	return count <= int64(wl.limit)
}

func (wl *WindowLimiter) counterKey(key string, now time.Time) string {
	bucket := now.Unix() / int64(wl.window/time.Second)
	return fmt.Sprintf("%s:%s:%d", wl.prefix, key, bucket)
}
