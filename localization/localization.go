package localization

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type contextKey string

func (c contextKey) String() string {
	return "polyglot/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// ToContext adds language to the current supplied context.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts language from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// ExtractLanguageFromHTTPRequest lists the requested languages, the lang query
// parameter first, followed by the Accept-Language preferences.
func ExtractLanguageFromHTTPRequest(req *http.Request) []string {
	var languages []string
	if lang := strings.TrimSpace(req.URL.Query().Get("lang")); lang != "" {
		languages = append(languages, lang)
	}

	return append(languages, ExtractLanguageFromHTTPHeader(req.Header)...)
}

// ExtractLanguageFromHTTPHeader returns the Accept-Language tags ordered by quality.
func ExtractLanguageFromHTTPHeader(header http.Header) []string {
	accept := header.Get("Accept-Language")
	if accept == "" {
		return nil
	}

	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return nil
	}

	languages := make([]string, 0, len(tags))
	for _, tag := range tags {
		languages = append(languages, tag.String())
	}
	return languages
}

// Negotiate picks the supported locale that best fits requested. It returns
// defaultLocale when nothing matches with at least low confidence.
func Negotiate(supported []string, defaultLocale string, requested ...string) string {
	candidates := []string{defaultLocale}
	tags := []language.Tag{language.Make(defaultLocale)}
	for _, s := range supported {
		if s == defaultLocale {
			continue
		}
		tag, err := language.Parse(s)
		if err != nil {
			continue
		}
		candidates = append(candidates, s)
		tags = append(tags, tag)
	}

	var wanted []language.Tag
	for _, r := range requested {
		tag, err := language.Parse(strings.TrimSpace(r))
		if err == nil {
			wanted = append(wanted, tag)
		}
	}
	if len(wanted) == 0 {
		return defaultLocale
	}

	_, index, confidence := language.NewMatcher(tags).Match(wanted...)
	if confidence == language.No {
		return defaultLocale
	}
	return candidates[index]
}
