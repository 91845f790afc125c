package localization

import (
	"context"
	"fmt"
	"maps"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
)

//nolint:gochecknoglobals // CLDR plural category names
var pluralCategories = map[string]struct{}{
	"zero": {}, "one": {}, "two": {}, "few": {}, "many": {}, "other": {},
}

// Translator exposes the keys of one bundle to views.
type Translator struct {
	ctx       context.Context
	locale    string
	prefix    string
	localizer *i18n.Localizer
	ids       map[string]struct{}
}

// NewTranslator registers every message of bundle with go-i18n. A mapping whose
// keys are all CLDR plural categories, including "other", becomes one plural message.
// Simple ICU arguments like {locale} are read as {{.Locale}}.
func NewTranslator(bundle *Bundle) (*Translator, error) {
	tag, err := language.Parse(bundle.Locale())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnsupportedLocale, bundle.Locale(), err)
	}

	messages := collectMessages(bundle.Messages(), "", nil)

	ids := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if _, dup := ids[m.ID]; dup {
			return nil, fmt.Errorf("%w: %s: message %q is defined twice", ErrMalformedBundle, bundle.Locale(), m.ID)
		}
		ids[m.ID] = struct{}{}
	}

	catalog := i18n.NewBundle(tag)
	if err = catalog.AddMessages(tag, messages...); err != nil {
		return nil, fmt.Errorf("localization: register %s messages: %w", bundle.Locale(), err)
	}

	return &Translator{
		ctx:       context.Background(),
		locale:    bundle.Locale(),
		localizer: i18n.NewLocalizer(catalog, tag.String()),
		ids:       ids,
	}, nil
}

func collectMessages(tree map[string]any, prefix string, out []*i18n.Message) []*i18n.Message {
	for key, value := range tree {
		id := joinKey(prefix, key)
		switch v := value.(type) {
		case string:
			out = append(out, &i18n.Message{ID: id, Other: templateArgs(v)})
		case map[string]any:
			if msg, ok := pluralMessage(id, v); ok {
				out = append(out, msg)
				continue
			}
			out = collectMessages(v, id, out)
		}
	}
	return out
}

func pluralMessage(id string, forms map[string]any) (*i18n.Message, bool) {
	if _, ok := forms["other"]; !ok {
		return nil, false
	}

	text := make(map[string]string, len(forms))
	for k, v := range forms {
		s, isString := v.(string)
		if _, isCategory := pluralCategories[k]; !isCategory || !isString {
			return nil, false
		}
		text[k] = templateArgs(s)
	}

	return &i18n.Message{
		ID:    id,
		Zero:  text["zero"],
		One:   text["one"],
		Two:   text["two"],
		Few:   text["few"],
		Many:  text["many"],
		Other: text["other"],
	}, true
}

// Locale is the locale of the underlying bundle.
func (t *Translator) Locale() string {
	return t.locale
}

// WithContext returns a translator that logs against ctx.
func (t *Translator) WithContext(ctx context.Context) *Translator {
	clone := *t
	clone.ctx = ctx
	return &clone
}

// Namespace returns a translator whose keys are relative to ns.
func (t *Translator) Namespace(ns string) *Translator {
	clone := *t
	clone.prefix = joinKey(t.prefix, ns)
	return &clone
}

// Has reports whether key resolves to a message.
func (t *Translator) Has(key string) bool {
	_, ok := t.ids[joinKey(t.prefix, key)]
	return ok
}

// T translates key.
func (t *Translator) T(key string) string {
	return t.localize(key, nil, nil)
}

// TWithData translates key, filling template fields such as {{.Name}} from data.
func (t *Translator) TWithData(key string, data map[string]any) string {
	return t.localize(key, data, nil)
}

// TWithCount translates a plural key. count is also available to the template as {{.Count}}.
func (t *Translator) TWithCount(key string, data map[string]any, count int) string {
	merged := make(map[string]any, len(data)+1)
	maps.Copy(merged, data)
	if _, ok := merged["Count"]; !ok {
		merged["Count"] = count
	}
	return t.localize(key, merged, count)
}

func (t *Translator) localize(key string, data map[string]any, count any) string {
	id := joinKey(t.prefix, key)

	if _, ok := t.ids[id]; !ok {
		util.Log(t.ctx).
			WithField("locale", t.locale).
			WithField("key", id).
			Error("missing translation")
		return id
	}

	text, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
		PluralCount:  count,
	})
	if err != nil {
		util.Log(t.ctx).WithError(err).
			WithField("locale", t.locale).
			WithField("key", id).
			Error("could not perform translation")
		return id
	}
	return text
}
