// Package config loads, overrides and validates the bridge configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/errors"
	"github.com/reglet-dev/luabridge/infrastructure/parser"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LUABRIDGE_"

// Load builds the configuration: defaults, then the file at path (if any),
// then LUABRIDGE_* environment variables, then opts. The result is validated.
func Load(path string, opts ...entities.ConfigOption) (entities.Config, error) {
	cfg := entities.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return entities.Config{}, fmt.Errorf("reading config: %w", err)
		}
		p, err := parser.ForPath(path)
		if err != nil {
			return entities.Config{}, &errors.ConfigError{Err: err}
		}
		if err := p.Parse(data, &cfg); err != nil {
			return entities.Config{}, &errors.ConfigError{Err: fmt.Errorf("%s: %w", path, err)}
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return entities.Config{}, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := Validate(cfg); err != nil {
		return entities.Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from LUABRIDGE_LISTEN, LUABRIDGE_SCRIPT,
// LUABRIDGE_SLOTS, LUABRIDGE_ASYNC and LUABRIDGE_ADMIN_LISTEN.
func ApplyEnv(cfg *entities.Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "LISTEN"); ok && v != "" {
		cfg.Listen = v
	}
	if v, ok := lookup(EnvPrefix + "SCRIPT"); ok && v != "" {
		cfg.Script = v
	}
	if v, ok := lookup(EnvPrefix + "ADMIN_LISTEN"); ok {
		cfg.Admin.Listen = v
	}
	for name, dst := range map[string]*int{"SLOTS": &cfg.Slots, "ASYNC": &cfg.Async} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &errors.ConfigError{Field: strings.ToLower(name), Err: fmt.Errorf("%s%s: %w", EnvPrefix, name, err)}
		}
		*dst = n
	}
	return nil
}

// IsScriptTarget reports whether a positional target names a Lua script,
// that is whether it ends in .lua or .ws.
func IsScriptTarget(target string) bool {
	return strings.HasSuffix(target, ".lua") || strings.HasSuffix(target, ".ws")
}
