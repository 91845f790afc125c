// Package ota reads translations from a Crowdin over-the-air distribution.
//
// A distribution is addressed by its hash. Its manifest lists the released
// files per language and a timestamp that changes with every release:
//
//	GET {base}/{hash}/manifest.json
//	GET {base}/{hash}{file}?timestamp={timestamp}
package ota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/polyglot/cache"
	"github.com/pitabwire/polyglot/client"
	"github.com/pitabwire/polyglot/telemetry"
)

const (
	tracerName         = "github.com/pitabwire/polyglot/ota"
	defaultConcurrency = 4
)

// Client fetches manifests and translation files of one distribution.
type Client struct {
	hash             string
	baseURL          string
	invoker          client.Manager
	locale           string
	disableDeepMerge bool
	concurrency      int

	manifestRaw   cache.RawCache
	manifestTTL   time.Duration
	manifestCache cache.Cache[string, Manifest]
	stringsRaw    cache.RawCache
	stringsTTL    time.Duration
	stringsCache  cache.Cache[string, map[string]any]
	owned         []cache.RawCache

	tracer       telemetry.Tracer
	fetchedBytes metric.Int64Counter
	cacheHits    metric.Int64Counter

	closeOnce sync.Once
}

// NewClient creates a client for the distribution identified by hash.
func NewClient(hash string, opts ...Option) (*Client, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, ErrMissingDistributionHash
	}

	c := &Client{
		hash:        hash,
		baseURL:     DefaultBaseURL,
		manifestTTL: defaultManifestTTL,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if c.invoker == nil {
		c.invoker = client.NewManager()
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.tracer == nil {
		c.tracer = telemetry.NewTracer(tracerName)
	}
	c.fetchedBytes = telemetry.BytesMeasure(tracerName, "/fetched_bytes", "Bytes of distribution content downloaded")
	c.cacheHits = telemetry.DimensionlessMeasure(tracerName, "/cache_hits", "Distribution reads served from cache")

	if c.manifestTTL > 0 {
		if c.manifestRaw == nil {
			c.manifestRaw = cache.NewInMemoryCache()
			c.owned = append(c.owned, c.manifestRaw)
		}
		c.manifestCache = cache.NewGenericCache[string, Manifest](c.manifestRaw, cache.PrefixKey("ota:manifest"))
	}
	if c.stringsTTL > 0 {
		if c.stringsRaw == nil {
			c.stringsRaw = cache.NewInMemoryCache()
			c.owned = append(c.owned, c.stringsRaw)
		}
		c.stringsCache = cache.NewGenericCache[string, map[string]any](c.stringsRaw, cache.PrefixKey("ota:strings"))
	}

	return c, nil
}

// Hash returns the distribution hash.
func (c *Client) Hash() string {
	return c.hash
}

// Close releases caches the client created itself.
func (c *Client) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		for _, raw := range c.owned {
			if err := raw.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// Manifest returns the current manifest, from cache while it is fresh.
func (c *Client) Manifest(ctx context.Context) (*Manifest, error) {
	if c.manifestCache != nil {
		cached, found, err := c.manifestCache.Get(ctx, c.hash)
		if err != nil {
			util.Log(ctx).WithError(err).Warn("manifest cache read failed")
		} else if found {
			c.cacheHits.Add(ctx, 1, metric.WithAttributes(telemetry.AttrMethodKey.String("Manifest")))
			return &cached, nil
		}
	}

	ctx, span := c.tracer.Start(ctx, "Manifest")
	manifest, err := c.fetchManifest(ctx)
	c.tracer.End(ctx, span, err)
	if err != nil {
		return nil, err
	}

	if c.manifestCache != nil {
		if setErr := c.manifestCache.Set(ctx, c.hash, *manifest, c.manifestTTL); setErr != nil {
			util.Log(ctx).WithError(setErr).Warn("manifest cache write failed")
		}
	}
	return manifest, nil
}

func (c *Client) fetchManifest(ctx context.Context) (*Manifest, error) {
	endpoint := c.baseURL + "/" + c.hash + "/manifest.json"

	raw, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err = json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedManifest, err)
	}
	if manifest.Content == nil {
		return nil, fmt.Errorf("%w: no content section", ErrMalformedManifest)
	}

	util.Log(ctx).
		WithField("hash", c.hash).
		WithField("timestamp", manifest.Timestamp).
		WithField("languages", len(manifest.Content)).
		Debug("distribution manifest fetched")
	return &manifest, nil
}

// ManifestTimestamp returns the release timestamp of the distribution.
func (c *Client) ManifestTimestamp(ctx context.Context) (int64, error) {
	m, err := c.Manifest(ctx)
	if err != nil {
		return 0, err
	}
	return m.Timestamp, nil
}

// ListFiles returns the source files of the distribution.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	m, err := c.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), m.Files...), nil
}

// ListLanguages returns the languages of the distribution.
func (c *Client) ListLanguages(ctx context.Context) ([]string, error) {
	m, err := c.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	if len(m.Languages) > 0 {
		return append([]string(nil), m.Languages...), nil
	}
	return m.ContentLanguages(), nil
}

// FileTranslations returns the raw JSON content of file for locale.
func (c *Client) FileTranslations(ctx context.Context, file, locale string) ([]byte, error) {
	m, err := c.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	lang, err := c.resolve(m, locale)
	if err != nil {
		return nil, err
	}

	for _, path := range m.Content[lang] {
		if path == file || strings.TrimPrefix(path, "/") == strings.TrimPrefix(file, "/") {
			return c.get(ctx, c.fileURL(path, m.Timestamp))
		}
	}
	return nil, fmt.Errorf("%w: %s for %s", ErrFileNotInDistribution, file, lang)
}

// StringsByLocale returns every JSON file released for locale merged into one
// tree, later files winning. An empty locale means the client locale.
func (c *Client) StringsByLocale(ctx context.Context, locale string) (map[string]any, error) {
	ctx, span := c.tracer.Start(ctx, "StringsByLocale")
	strs, err := c.stringsByLocale(ctx, locale)
	c.tracer.End(ctx, span, err)
	return strs, err
}

func (c *Client) stringsByLocale(ctx context.Context, locale string) (map[string]any, error) {
	m, err := c.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	lang, err := c.resolve(m, locale)
	if err != nil {
		return nil, err
	}
	return c.languageStrings(ctx, m, lang)
}

// Strings returns the merged strings of every content language.
func (c *Client) Strings(ctx context.Context) (map[string]map[string]any, error) {
	m, err := c.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	languages := m.ContentLanguages()
	results := make([]map[string]any, len(languages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, lang := range languages {
		g.Go(func() error {
			strs, fetchErr := c.languageStrings(gctx, m, lang)
			if fetchErr != nil {
				return fmt.Errorf("%s: %w", lang, fetchErr)
			}
			results[i] = strs
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	all := make(map[string]map[string]any, len(languages))
	for i, lang := range languages {
		all[lang] = results[i]
	}
	return all, nil
}

// StringByKey returns the string at path, for example []string{"Index", "title"}.
func (c *Client) StringByKey(ctx context.Context, path []string, locale string) (string, error) {
	strs, err := c.StringsByLocale(ctx, locale)
	if err != nil {
		return "", err
	}

	key := strings.Join(path, ".")
	node, ok := lookupPath(strs, path)
	if !ok || len(path) == 0 {
		return "", fmt.Errorf("%w: %s", ErrStringNotFound, key)
	}
	s, ok := node.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrStringNotFound, key)
	}
	return s, nil
}

// ClearStringsCache drops the cached strings of the current release.
func (c *Client) ClearStringsCache(ctx context.Context) error {
	if c.stringsCache == nil {
		return nil
	}

	m, err := c.Manifest(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, lang := range m.ContentLanguages() {
		if delErr := c.stringsCache.Delete(ctx, c.stringsKey(m.Timestamp, lang)); delErr != nil {
			errs = append(errs, delErr)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) resolve(m *Manifest, locale string) (string, error) {
	if locale == "" {
		locale = c.locale
	}
	lang, ok := m.ResolveLanguage(locale)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrLocaleNotInDistribution, locale)
	}
	return lang, nil
}

func (c *Client) stringsKey(timestamp int64, lang string) string {
	return c.hash + ":" + strconv.FormatInt(timestamp, 10) + ":" + lang
}

func (c *Client) languageStrings(ctx context.Context, m *Manifest, lang string) (map[string]any, error) {
	key := c.stringsKey(m.Timestamp, lang)

	if c.stringsCache != nil {
		cached, found, err := c.stringsCache.Get(ctx, key)
		if err != nil {
			util.Log(ctx).WithError(err).Warn("strings cache read failed")
		} else if found {
			c.cacheHits.Add(ctx, 1, metric.WithAttributes(telemetry.AttrMethodKey.String("StringsByLocale")))
			return cached, nil
		}
	}

	merged := make(map[string]any)
	for _, path := range m.Content[lang] {
		if !strings.EqualFold(pathExt(path), ".json") {
			util.Log(ctx).WithField("file", path).Debug("skipping non-JSON distribution file")
			continue
		}

		raw, err := c.get(ctx, c.fileURL(path, m.Timestamp))
		if err != nil {
			return nil, err
		}

		var tree map[string]any
		if err = json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedContent, path, err)
		}

		if c.disableDeepMerge {
			merged = shallowMerge(merged, tree)
		} else {
			merged = deepMerge(merged, tree)
		}
	}

	if c.stringsCache != nil {
		if err := c.stringsCache.Set(ctx, key, merged, c.stringsTTL); err != nil {
			util.Log(ctx).WithError(err).Warn("strings cache write failed")
		}
	}
	return merged, nil
}

func pathExt(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 && !strings.Contains(path[i:], "/") {
		return path[i:]
	}
	return ""
}

func (c *Client) fileURL(path string, timestamp int64) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + "/" + c.hash + path + "?timestamp=" + strconv.FormatInt(timestamp, 10)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.invoker.Invoke(ctx, http.MethodGet, endpoint, nil, http.Header{
		"Accept": {"application/json"},
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		util.CloseAndLogOnError(ctx, resp)
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, endpoint)
	}

	body, err := resp.ToContent(ctx)
	if err != nil {
		return nil, err
	}

	c.fetchedBytes.Add(ctx, int64(len(body)))
	return body, nil
}
