package ratelimiter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/polyglot/cache"
)

const defaultIPPrefix = "ratelimit:ip"

// IPRateLimiter applies a window limit per caller IP.
type IPRateLimiter struct {
	window *WindowLimiter
	owned  cache.RawCache
}

// NewIPRateLimiter admits limit requests per window from each IP. A nil raw
// cache is replaced by an in-memory cache the limiter owns.
func NewIPRateLimiter(raw cache.RawCache, limit int, window time.Duration) (*IPRateLimiter, error) {
	var owned cache.RawCache
	if raw == nil {
		raw = cache.NewInMemoryCache()
		owned = raw
	}

	wl, err := NewWindowLimiter(raw, limit, window, WithKeyPrefix(defaultIPPrefix))
	if err != nil {
		if owned != nil {
			_ = owned.Close()
		}
		return nil, err
	}
	return &IPRateLimiter{window: wl, owned: owned}, nil
}

// Allow reports whether ip is within its budget for the current window.
func (rl *IPRateLimiter) Allow(ctx context.Context, ip string) bool {
	if rl == nil {
		return true
	}
	return rl.window.Allow(ctx, ip)
}

// Close releases the cache the limiter created itself.
func (rl *IPRateLimiter) Close() error {
	if rl == nil || rl.owned == nil {
		return nil
	}
	return rl.owned.Close()
}

// GetIP extracts the caller IP, or "unknown".
func GetIP(r *http.Request) string {
	if r == nil {
		return unknownCallerName
	}
	if ip := util.GetIP(r); ip != "" {
		return ip
	}
	return unknownCallerName
}

// RateLimitMiddleware rejects callers that exceed their IP window with 429.
func RateLimitMiddleware(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		limit := limiter.window.Limit()

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetIP(r)
			if !limiter.Allow(r.Context(), ip) {
				util.Log(r.Context()).WithField("ip", ip).Debug("request rate limited")
				rateLimited(w, limit, limiter.window.Window(), "ip")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			next.ServeHTTP(w, r)
		})
	}
}

// BurstLimitMiddleware applies limiter per caller IP and the request's
// {locale} path value.
func BurstLimitMiddleware(limiter *BurstLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, locale := GetIP(r), r.PathValue("locale")
			if !limiter.Allow(ip, locale) {
				util.Log(r.Context()).WithField("ip", ip).WithField("locale", locale).Debug("burst rate limited")
				rateLimited(w, limiter.Burst(), time.Second, "burst")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimited(w http.ResponseWriter, limit int, window time.Duration, scope string) {
	retryAfter := max(int(math.Ceil(window.Seconds())), 1)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Scope", scope)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate limit exceeded","code":"rate_limit_exceeded"}`))
}
