// Package parser decodes configuration files into entities.Config.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/ports"
)

// YAMLConfigParser implements ports.ConfigParser for YAML.
type YAMLConfigParser struct{}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func (YAMLConfigParser) Parse(data []byte, cfg *entities.Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// an empty document leaves cfg untouched
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding yaml: %w", err)
	}
	return nil
}

// TOMLConfigParser implements ports.ConfigParser for TOML.
type TOMLConfigParser struct{}

// Parse decodes TOML into cfg. Unknown keys are rejected.
func (TOMLConfigParser) Parse(data []byte, cfg *entities.Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decoding toml: %w", err)
	}
	return nil
}

// ForPath picks a parser from the file extension of path.
func ForPath(path string) (ports.ConfigParser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLConfigParser{}, nil
	case ".toml":
		return TOMLConfigParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}
