package localization

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Loader reads the raw message tree of a locale from local storage.
type Loader interface {
	Load(ctx context.Context, locale string) (map[string]any, error)
}

// Fetcher retrieves the raw message tree of a locale from a remote source.
type Fetcher interface {
	StringsByLocale(ctx context.Context, locale string) (map[string]any, error)
}

type decodeFunc func([]byte, *map[string]any) error

// bundleFormats is the lookup order of file extensions.
//
//nolint:gochecknoglobals // fixed table of supported formats
var bundleFormats = []struct {
	ext    string
	decode decodeFunc
}{
	{ext: ".json", decode: decodeJSON},
	{ext: ".toml", decode: func(raw []byte, out *map[string]any) error {
		return toml.Unmarshal(raw, out)
	}},
	{ext: ".yaml", decode: decodeYAML},
	{ext: ".yml", decode: decodeYAML},
}

func decodeJSON(raw []byte, out *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON document")
	}
	return nil
}

func decodeYAML(raw []byte, out *map[string]any) error {
	return yaml.Unmarshal(raw, out)
}

// FSLoader loads {dir}/{locale}.json, .toml, .yaml or .yml from a file system.
type FSLoader struct {
	fsys fs.FS
	dir  string
}

// NewFSLoader creates a loader rooted at dir inside fsys.
func NewFSLoader(fsys fs.FS, dir string) *FSLoader {
	if dir == "" {
		dir = "."
	}
	return &FSLoader{fsys: fsys, dir: dir}
}

// Load returns the message tree of the first bundle file found for locale.
func (l *FSLoader) Load(ctx context.Context, locale string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if locale == "" || !fs.ValidPath(locale) || path.Base(locale) != locale {
		return nil, fmt.Errorf("%w: invalid locale %q", ErrBundleNotFound, locale)
	}

	for _, format := range bundleFormats {
		name := path.Join(l.dir, locale+format.ext)

		raw, err := fs.ReadFile(l.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("localization: read %s: %w", name, err)
		}

		var messages map[string]any
		if decodeErr := format.decode(raw, &messages); decodeErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedBundle, name, decodeErr)
		}
		return messages, nil
	}

	return nil, fmt.Errorf("%w: %s/%s.{json,toml,yaml,yml}", ErrBundleNotFound, l.dir, locale)
}
