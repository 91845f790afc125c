package cache

import (
	"time"

	"github.com/pitabwire/polyglot/data"
)

// Option configures a cache backend.
type Option func(*Options)

// Options carries backend settings. MaxAge is the TTL applied when Set is
// called without one.
type Options struct {
	DSN    data.DSN
	MaxAge time.Duration
}

// WithDSN sets the connection string the backend dials.
func WithDSN(dsn data.DSN) Option {
	return func(o *Options) {
		o.DSN = dsn
	}
}

// WithMaxAge bounds the lifetime of entries stored without a TTL.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = maxAge
	}
}
