package localization

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Bundle is the immutable set of translated messages for one locale. Keys may
// nest into namespaces, for example {"Index": {"title": "Hello"}}.
type Bundle struct {
	locale   string
	messages map[string]any
	flat     map[string]string
}

// NewBundle validates messages and wraps them for locale. The mapping must be
// non-empty, keyed by strings and hold only strings or nested mappings.
func NewBundle(locale string, messages map[string]any) (*Bundle, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: %s bundle is empty", ErrMalformedBundle, locale)
	}

	normalised, err := normaliseTree(messages, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedBundle, locale, err)
	}

	flat := make(map[string]string)
	if err = flattenInto(flat, normalised, ""); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedBundle, locale, err)
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("%w: %s bundle holds no messages", ErrMalformedBundle, locale)
	}

	return &Bundle{
		locale:   locale,
		messages: normalised,
		flat:     flat,
	}, nil
}

func normaliseTree(in map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if key == "" {
			return nil, fmt.Errorf("empty key under %q", path)
		}
		keyPath := joinKey(path, key)

		switch v := value.(type) {
		case string:
			out[key] = v
		case map[string]any:
			child, err := normaliseTree(v, keyPath)
			if err != nil {
				return nil, err
			}
			out[key] = child
		case map[string]string:
			child := make(map[string]any, len(v))
			for ck, cv := range v {
				child[ck] = cv
			}
			out[key] = child
		case map[any]any:
			converted := make(map[string]any, len(v))
			for ck, cv := range v {
				sk, ok := ck.(string)
				if !ok {
					return nil, fmt.Errorf("non-string key %v under %q", ck, keyPath)
				}
				converted[sk] = cv
			}
			child, err := normaliseTree(converted, keyPath)
			if err != nil {
				return nil, err
			}
			out[key] = child
		default:
			return nil, fmt.Errorf("value at %q is %T, not a string", keyPath, value)
		}
	}
	return out, nil
}

// flattenInto fails when two paths join to the same key, as
// {"Index": {"title": ..}} and {"Index.title": ..} do.
func flattenInto(dst map[string]string, tree map[string]any, prefix string) error {
	for key, value := range tree {
		keyPath := joinKey(prefix, key)
		switch v := value.(type) {
		case string:
			if _, dup := dst[keyPath]; dup {
				return fmt.Errorf("key %q is defined twice", keyPath)
			}
			dst[keyPath] = v
		case map[string]any:
			if err := flattenInto(dst, v, keyPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func deepCopy(tree map[string]any) map[string]any {
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		if child, ok := value.(map[string]any); ok {
			out[key] = deepCopy(child)
			continue
		}
		out[key] = value
	}
	return out
}

// Locale returns the locale code the bundle was built for.
func (b *Bundle) Locale() string {
	return b.locale
}

// Messages returns a copy of the nested message tree.
func (b *Bundle) Messages() map[string]any {
	return deepCopy(b.messages)
}

// Flatten returns every message keyed by its dot-joined path.
func (b *Bundle) Flatten() map[string]string {
	return maps.Clone(b.flat)
}

// Lookup returns the message at a dot-joined key.
func (b *Bundle) Lookup(key string) (string, bool) {
	v, ok := b.flat[key]
	return v, ok
}

// Len is the number of leaf messages.
func (b *Bundle) Len() int {
	return len(b.flat)
}

// Keys returns the sorted dot-joined keys.
func (b *Bundle) Keys() []string {
	return slices.Sorted(maps.Keys(b.flat))
}

// Namespace returns the sub-bundle rooted at name, or false when name is not a namespace.
func (b *Bundle) Namespace(name string) (*Bundle, bool) {
	node := any(b.messages)
	for _, part := range strings.Split(name, ".") {
		tree, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = tree[part]; !ok {
			return nil, false
		}
	}

	tree, ok := node.(map[string]any)
	if !ok || len(tree) == 0 {
		return nil, false
	}

	flat := make(map[string]string)
	if err := flattenInto(flat, tree, ""); err != nil {
		return nil, false
	}
	return &Bundle{locale: b.locale, messages: deepCopy(tree), flat: flat}, true
}
