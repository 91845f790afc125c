package site

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/pitabwire/polyglot/localization"
)

//go:embed templates/*.html
var templates embed.FS

// LinkFunc returns the href of the page for locale.
type LinkFunc func(locale, defaultLocale string) string

// ServerLinks addresses the default locale at / and others at /{locale}.
func ServerLinks(locale, defaultLocale string) string {
	if locale == defaultLocale {
		return "/"
	}
	return "/" + locale
}

// StaticLinks addresses the directories written by Builder.
func StaticLinks(locale, defaultLocale string) string {
	if locale == defaultLocale {
		return "/"
	}
	return "/" + locale + "/"
}

// Renderer renders the index page from props.
type Renderer struct {
	index *template.Template
	links LinkFunc
}

// NewRenderer parses the embedded templates. A nil links uses ServerLinks.
func NewRenderer(links LinkFunc) (*Renderer, error) {
	index, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("site: parse templates: %w", err)
	}
	if links == nil {
		links = ServerLinks
	}
	return &Renderer{index: index, links: links}, nil
}

type switcherLink struct {
	Locale string
	Href   string
	Label  string
}

type indexView struct {
	Lang        string
	PageTitle   string
	Title       string
	Description string
	Switcher    []switcherLink
}

// NativeName returns the name of locale in its own language.
func NativeName(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return locale
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return locale
}

func (r *Renderer) view(ctx context.Context, props Props) (indexView, error) {
	bundle, err := props.Bundle()
	if err != nil {
		return indexView{}, err
	}

	tr, err := localization.NewTranslator(bundle)
	if err != nil {
		return indexView{}, err
	}
	tr = tr.WithContext(ctx)

	index := tr.Namespace("Index")
	title := index.T("title")

	switcher := tr.Namespace("LocaleSwitcher")
	links := make([]switcherLink, 0, len(props.Locales))
	for _, locale := range props.Locales {
		if locale == props.Locale {
			continue
		}
		links = append(links, switcherLink{
			Locale: locale,
			Href:   r.links(locale, props.DefaultLocale),
			Label:  switcher.TWithData("switchLocale", map[string]any{"Locale": NativeName(locale)}),
		})
	}

	return indexView{
		Lang:        props.Locale,
		PageTitle:   tr.Namespace("PageLayout").TWithData("pageTitle", map[string]any{"Title": title}),
		Title:       title,
		Description: index.T("description"),
		Switcher:    links,
	}, nil
}

// Index writes the index page for props to w.
func (r *Renderer) Index(ctx context.Context, w io.Writer, props Props) error {
	view, err := r.view(ctx, props)
	if err != nil {
		return err
	}
	return r.index.Execute(w, view)
}
