package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default allowance of a BurstLimiter: requests per second and bucket size.
const (
	DefaultBurstRate = 5
	DefaultBurstSize = 10
)

const (
	defaultBurstIdle  = 10 * time.Minute
	unknownCallerName = "unknown"
)

// burstKey scopes a token bucket to one caller asking for one locale.
type burstKey struct {
	ip     string
	locale string
}

type burstBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BurstLimiter keeps an in-memory token bucket per caller IP and locale.
// Buckets idle for longer than the idle window are dropped.
type BurstLimiter struct {
	perSecond rate.Limit
	burst     int
	idle      time.Duration

	mu      sync.Mutex
	buckets map[burstKey]*burstBucket

	stopOnce sync.Once
	stop     chan struct{}
}

// NewBurstLimiter allows perSecond requests with bursts of burst per caller
// and locale. Non-positive values fall back to the package defaults.
func NewBurstLimiter(perSecond float64, burst int, idle time.Duration) *BurstLimiter {
	if perSecond <= 0 {
		perSecond = DefaultBurstRate
	}
	if burst <= 0 {
		burst = DefaultBurstSize
	}
	if idle <= 0 {
		idle = defaultBurstIdle
	}

	bl := &BurstLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		idle:      idle,
		buckets:   make(map[burstKey]*burstBucket),
		stop:      make(chan struct{}),
	}
	go bl.sweepLoop()
	return bl
}

// Burst reports the bucket size.
func (b *BurstLimiter) Burst() int {
	return b.burst
}

// Allow consumes one token from the bucket of ip asking for locale.
func (b *BurstLimiter) Allow(ip, locale string) bool {
	if ip == "" {
		ip = unknownCallerName
	}
	now := time.Now()
	key := burstKey{ip: ip, locale: locale}

	b.mu.Lock()
	bucket, ok := b.buckets[key]
	if !ok {
		bucket = &burstBucket{limiter: rate.NewLimiter(b.perSecond, b.burst)}
		b.buckets[key] = bucket
	}
	bucket.lastSeen = now
	b.mu.Unlock()

	return bucket.limiter.AllowN(now, 1)
}

// Close stops the idle sweep.
func (b *BurstLimiter) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	return nil
}

func (b *BurstLimiter) sweepLoop() {
	ticker := time.NewTicker(b.idle)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			b.sweep(now)
		case <-b.stop:
			return
		}
	}
}

func (b *BurstLimiter) sweep(now time.Time) int {
	cutoff := now.Add(-b.idle)

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, bucket := range b.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(b.buckets, key)
			removed++
		}
	}
	return removed
}
