package ota

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// Manifest describes one release of a distribution.
type Manifest struct {
	Files           []string        `json:"files"`
	Languages       []string        `json:"languages"`
	LanguageMapping LanguageMapping `json:"language_mapping"`
	Timestamp       int64           `json:"timestamp"`
	Content         Content         `json:"content"`
}

// LanguageMapping maps a distribution language to its custom codes, for
// example {"uk": {"locale": "uk-UA"}}.
type LanguageMapping map[string]map[string]string

// UnmarshalJSON also accepts the empty array the distribution sends when no mapping exists.
func (m *LanguageMapping) UnmarshalJSON(raw []byte) error {
	if isEmptyArray(raw) {
		*m = LanguageMapping{}
		return nil
	}
	var v map[string]map[string]string
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*m = v
	return nil
}

// Content maps a distribution language to the file paths released for it.
type Content map[string][]string

// UnmarshalJSON also accepts an empty array.
func (c *Content) UnmarshalJSON(raw []byte) error {
	if isEmptyArray(raw) {
		*c = Content{}
		return nil
	}
	var v map[string][]string
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*c = v
	return nil
}

func isEmptyArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < 2 || trimmed[0] != '[' {
		return false
	}
	return len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0 && trimmed[len(trimmed)-1] == ']'
}

// ContentLanguages returns the languages that have released files, sorted.
func (m *Manifest) ContentLanguages() []string {
	return slices.Sorted(maps.Keys(m.Content))
}

// ResolveLanguage maps locale onto a content language: an exact key first,
// then a language_mapping locale alias, then a case-insensitive match.
func (m *Manifest) ResolveLanguage(locale string) (string, bool) {
	if _, ok := m.Content[locale]; ok {
		return locale, true
	}

	for _, lang := range slices.Sorted(maps.Keys(m.LanguageMapping)) {
		alias := m.LanguageMapping[lang]["locale"]
		if alias == "" || !strings.EqualFold(alias, locale) {
			continue
		}
		if _, ok := m.Content[lang]; ok {
			return lang, true
		}
	}

	want := normaliseCode(locale)
	for _, lang := range m.ContentLanguages() {
		if normaliseCode(lang) == want {
			return lang, true
		}
	}
	return "", false
}

func normaliseCode(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "_", "-"))
}
