package localization

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pitabwire/util"

	"github.com/pitabwire/polyglot/telemetry"
)

const tracerName = "github.com/pitabwire/polyglot/localization"

var errFetcherRequired = errors.New("localization: a fetcher is required when non-default locales are supported")

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithTracer replaces the package tracer, mostly for tests.
func WithTracer(t telemetry.Tracer) ProviderOption {
	return func(p *Provider) {
		p.tracer = t
	}
}

// Provider resolves the string bundle of a supported locale. The default
// locale comes from the local loader, every other locale from the fetcher.
// It holds no cache, each call builds a fresh bundle.
type Provider struct {
	defaultLocale string
	supported     []string
	loader        Loader
	fetcher       Fetcher
	tracer        telemetry.Tracer
}

// NewProvider builds a provider for supported locales. defaultLocale must be
// one of them and is served by loader.
func NewProvider(
	defaultLocale string,
	supported []string,
	loader Loader,
	fetcher Fetcher,
	opts ...ProviderOption,
) (*Provider, error) {
	if loader == nil {
		return nil, errors.New("localization: a loader is required")
	}

	locales := make([]string, 0, len(supported)+1)
	for _, l := range supported {
		if l != "" && !slices.Contains(locales, l) {
			locales = append(locales, l)
		}
	}
	if !slices.Contains(locales, defaultLocale) {
		return nil, fmt.Errorf("%w: default locale %q is not supported", ErrUnsupportedLocale, defaultLocale)
	}
	if len(locales) > 1 && fetcher == nil {
		return nil, errFetcherRequired
	}

	p := &Provider{
		defaultLocale: defaultLocale,
		supported:     locales,
		loader:        loader,
		fetcher:       fetcher,
		tracer:        telemetry.NewTracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// DefaultLocale is the locale served from the local bundle.
func (p *Provider) DefaultLocale() string {
	return p.defaultLocale
}

// SupportedLocales returns the supported locales in declaration order.
func (p *Provider) SupportedLocales() []string {
	return slices.Clone(p.supported)
}

// IsSupported reports whether locale is one of the supported locales.
func (p *Provider) IsSupported(locale string) bool {
	return slices.Contains(p.supported, locale)
}

// Bundle returns the string bundle for locale.
func (p *Provider) Bundle(ctx context.Context, locale string) (*Bundle, error) {
	if !p.IsSupported(locale) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}

	ctx, span := p.tracer.Start(ctx, "Bundle")
	bundle, err := p.bundle(ctx, locale)
	p.tracer.End(ctx, span, err)
	return bundle, err
}

func (p *Provider) bundle(ctx context.Context, locale string) (*Bundle, error) {
	log := util.Log(ctx).WithField("locale", locale)

	var (
		messages map[string]any
		err      error
	)

	if locale == p.defaultLocale {
		messages, err = p.loader.Load(ctx, locale)
		if err != nil {
			log.WithError(err).Error("could not load local bundle")
			return nil, err
		}
	} else {
		messages, err = p.fetcher.StringsByLocale(ctx, locale)
		if err != nil {
			log.WithError(err).Error("could not fetch remote bundle")
			return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, locale, err)
		}
	}

	bundle, err := NewBundle(locale, messages)
	if err != nil {
		log.WithError(err).Error("bundle rejected")
		return nil, err
	}

	log.WithField("messages", bundle.Len()).Debug("bundle resolved")
	return bundle, nil
}
