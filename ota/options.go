package ota

import (
	"time"

	"github.com/pitabwire/polyglot/cache"
	"github.com/pitabwire/polyglot/client"
	"github.com/pitabwire/polyglot/telemetry"
)

// DefaultBaseURL is the Crowdin distribution CDN.
const DefaultBaseURL = "https://distributions.crowdin.net"

const defaultManifestTTL = 5 * time.Minute

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another distribution host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithInvoker sets the REST invoker used for every request.
func WithInvoker(invoker client.Manager) Option {
	return func(c *Client) {
		c.invoker = invoker
	}
}

// WithManifestCache keeps manifests in raw for ttl. A ttl of zero refetches
// the manifest on every call.
func WithManifestCache(raw cache.RawCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.manifestRaw = raw
		c.manifestTTL = ttl
	}
}

// WithStringsCache keeps merged strings per language in raw for ttl. A ttl of
// zero disables the strings cache.
func WithStringsCache(raw cache.RawCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.stringsRaw = raw
		c.stringsTTL = ttl
	}
}

// WithLocale sets the locale used when a call passes an empty one.
func WithLocale(locale string) Option {
	return func(c *Client) {
		c.locale = locale
	}
}

// WithDisableDeepMerge makes later files replace top-level keys wholesale.
func WithDisableDeepMerge() Option {
	return func(c *Client) {
		c.disableDeepMerge = true
	}
}

// WithFetchConcurrency bounds the parallel language fetches of Strings.
func WithFetchConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithTracer replaces the package tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}
