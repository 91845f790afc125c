package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFileFormat = errors.New("config: unsupported file format")

// noDefaultTag disables envDefault handling on the second env pass, so
// defaults never clobber values read from the file.
const noDefaultTag = "envFileOverlayDefault"

// FromFile loads T from a YAML or TOML file chosen by extension. Precedence is
// env defaults, then the file, then explicitly set environment variables.
func FromFile[T any](path string) (T, error) {
	cfg, err := FromEnv[T]()
	if err != nil {
		return cfg, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	case ".toml":
		err = toml.Unmarshal(raw, &cfg)
	default:
		return cfg, fmt.Errorf("%w %q", ErrUnsupportedFileFormat, ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err = env.ParseWithOptions(&cfg, env.Options{DefaultValueTagName: noDefaultTag}); err != nil {
		return cfg, err
	}

	return cfg, nil
}
