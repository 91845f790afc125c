// Package site renders the localized index page, per request or ahead of time.
package site

import (
	"context"

	"github.com/pitabwire/polyglot/localization"
)

// BundleSource resolves the string bundle of a locale.
type BundleSource interface {
	Bundle(ctx context.Context, locale string) (*localization.Bundle, error)
	DefaultLocale() string
	SupportedLocales() []string
}

// Props is the input of one page render.
type Props struct {
	Locale        string         `json:"locale"`
	DefaultLocale string         `json:"defaultLocale"`
	Locales       []string       `json:"locales"`
	Messages      map[string]any `json:"messages"`

	bundle *localization.Bundle
}

// StaticProps resolves the props of the page for locale.
func StaticProps(ctx context.Context, source BundleSource, locale string) (Props, error) {
	bundle, err := source.Bundle(ctx, locale)
	if err != nil {
		return Props{}, err
	}

	return Props{
		Locale:        locale,
		DefaultLocale: source.DefaultLocale(),
		Locales:       source.SupportedLocales(),
		Messages:      bundle.Messages(),
		bundle:        bundle,
	}, nil
}

// Bundle returns the bundle behind the props, rebuilding it from Messages
// when the props were decoded rather than resolved.
func (p Props) Bundle() (*localization.Bundle, error) {
	if p.bundle != nil {
		return p.bundle, nil
	}
	return localization.NewBundle(p.Locale, p.Messages)
}
