package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/pitabwire/polyglot/data"
)

// ErrUnknownScheme is returned by Open when no backend is registered for a DSN scheme.
var ErrUnknownScheme = errors.New("cache: no backend registered for scheme")

// Opener constructs a RawCache from options carrying a DSN.
type Opener func(ctx context.Context, opts ...Option) (RawCache, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register makes a backend available to Open under the given URL scheme.
// Backends call it from init, so importing a backend package is enough to enable it.
func Register(scheme string, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[scheme] = opener
}

// Open creates a RawCache for the dsn. An empty dsn or mem:// gives the in-memory cache.
func Open(ctx context.Context, dsn data.DSN, opts ...Option) (RawCache, error) {
	if dsn.IsMem() {
		return NewInMemoryCache(opts...), nil
	}

	uri, err := url.Parse(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("cache: parse dsn: %w", err)
	}

	openersMu.RLock()
	opener, ok := openers[uri.Scheme]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownScheme, uri.Scheme)
	}

	return opener(ctx, append([]Option{WithDSN(dsn)}, opts...)...)
}
