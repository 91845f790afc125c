package data

import (
	"net/url"
	"strings"
)

// Schemes understood by the cache opener.
const (
	MemScheme    = "mem://"
	RedisScheme  = "redis://"
	RedissScheme = "rediss://"
	ValkeyScheme = "valkey://"
)

// A DSN for conveniently handling a URI connection string.
type DSN string

func (d DSN) String() string {
	return string(d)
}

func (d DSN) IsRedis() bool {
	return strings.HasPrefix(string(d), RedisScheme) || strings.HasPrefix(string(d), RedissScheme)
}

func (d DSN) IsValkey() bool {
	return strings.HasPrefix(string(d), ValkeyScheme)
}

func (d DSN) IsMem() bool {
	return d == "" || strings.HasPrefix(string(d), MemScheme)
}

func (d DSN) IsCache() bool {
	return d.IsRedis() || d.IsValkey()
}

func (d DSN) ToURI() (*url.URL, error) {
	return url.Parse(string(d))
}

// WithScheme swaps the scheme, keeping host, credentials, path and query.
func (d DSN) WithScheme(scheme string) DSN {
	nuURI, err := d.ToURI()
	if err != nil || nuURI.Scheme == "" {
		return d
	}

	nuURI.Scheme = scheme
	return DSN(nuURI.String())
}

func (d DSN) ExtendQuery(key, value string) DSN {
	nuURI, err := d.ToURI()
	if err != nil {
		return d
	}

	q := nuURI.Query()
	q.Set(key, value)

	nuURI.RawQuery = q.Encode()

	return DSN(nuURI.String())
}

func (d DSN) GetQuery(key string) string {
	nuURI, err := d.ToURI()
	if err != nil {
		return ""
	}

	return nuURI.Query().Get(key)
}

// Redacted returns the DSN with any password masked, suitable for logging.
func (d DSN) Redacted() string {
	nuURI, err := d.ToURI()
	if err != nil {
		return string(d)
	}
	return nuURI.Redacted()
}
