package site

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/pitabwire/util"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/polyglot/localization"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuildConcurrency bounds the number of locales generated at once.
func WithBuildConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		b.concurrency = n
	}
}

// WithBuildRenderer replaces the default renderer, which uses StaticLinks.
func WithBuildRenderer(r *Renderer) BuilderOption {
	return func(b *Builder) {
		b.renderer = r
	}
}

// Builder writes the pages of every locale to a directory.
type Builder struct {
	source      BundleSource
	renderer    *Renderer
	concurrency int
}

// NewBuilder creates a static builder over source.
func NewBuilder(source BundleSource, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{source: source, concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(b)
	}

	if b.concurrency <= 0 {
		b.concurrency = 1
	}
	if b.renderer == nil {
		r, err := NewRenderer(StaticLinks)
		if err != nil {
			return nil, err
		}
		b.renderer = r
	}
	return b, nil
}

// Page is one generated locale.
type Page struct {
	Locale string
	Files  []string
}

// Build generates {outDir}/{locale}/index.html and props.json for locales, or
// for every supported locale when none are given. The default locale is also
// written to {outDir}/index.html. Unsupported locales are refused before any
// page is generated, repeated locales are built once, and the first failing
// locale aborts the build.
func (b *Builder) Build(ctx context.Context, outDir string, requested ...string) ([]Page, error) {
	supported := b.source.SupportedLocales()
	if len(requested) == 0 {
		requested = supported
	}

	locales := make([]string, 0, len(requested))
	for _, locale := range requested {
		if !slices.Contains(supported, locale) {
			return nil, fmt.Errorf("%w: %q", localization.ErrUnsupportedLocale, locale)
		}
		if !slices.Contains(locales, locale) {
			locales = append(locales, locale)
		}
	}

	pages := make([]Page, len(locales))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, locale := range locales {
		g.Go(func() error {
			page, err := b.generate(gctx, outDir, locale)
			if err != nil {
				return fmt.Errorf("build %s: %w", locale, err)
			}
			pages[i] = page
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (b *Builder) generate(ctx context.Context, outDir, locale string) (Page, error) {
	props, err := StaticProps(ctx, b.source, locale)
	if err != nil {
		return Page{}, err
	}

	var html bytes.Buffer
	if err = b.renderer.Index(ctx, &html, props); err != nil {
		return Page{}, err
	}

	propsJSON, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return Page{}, err
	}

	dir := filepath.Join(outDir, locale)
	if err = os.MkdirAll(dir, dirPerm); err != nil {
		return Page{}, err
	}

	files := map[string][]byte{
		filepath.Join(dir, "index.html"): html.Bytes(),
		filepath.Join(dir, "props.json"): propsJSON,
	}
	if locale == b.source.DefaultLocale() {
		files[filepath.Join(outDir, "index.html")] = html.Bytes()
	}

	page := Page{Locale: locale}
	for name, content := range files {
		if err = ctx.Err(); err != nil {
			return Page{}, err
		}
		if err = os.WriteFile(name, content, filePerm); err != nil {
			return Page{}, err
		}
		page.Files = append(page.Files, name)
	}
	slices.Sort(page.Files)

	util.Log(ctx).WithField("locale", locale).WithField("files", len(page.Files)).Info("page generated")
	return page, nil
}
