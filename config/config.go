// Package config loads engine configuration from defaults, an optional YAML
// file and AUTOQUERY_-prefixed environment variables, in that precedence
// order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/asaidimu/go-autoquery/core/autoquery"
)

const envPrefix = "AUTOQUERY_"

// Config is the file and environment representation of the engine's options
// plus the backend connection settings.
type Config struct {
	DatabasePath string `koanf:"database_path"`

	MaxLimit             int    `koanf:"max_limit"` // 0 means unbounded
	IncludeTotal         bool   `koanf:"include_total"`
	EnableUntypedQueries bool   `koanf:"enable_untyped_queries"`
	EnableRawSQLFilters  bool   `koanf:"enable_raw_sql_filters"`
	OrderByPrimaryKey    bool   `koanf:"order_by_primary_key"`
	CaseSensitiveLike    bool   `koanf:"case_sensitive_like"`
	SnakeCaseParams      bool   `koanf:"snake_case_params"`
	NamedConnection      string `koanf:"named_connection"`

	LogLevel string `koanf:"log_level"`
}

// Load builds a Config from defaults, the config file at path (skipped when
// path is empty or the file does not exist) and AUTOQUERY_ environment
// variables. AUTOQUERY_MAX_LIMIT=100 overrides max_limit, and so on.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"database_path":          ":memory:",
		"max_limit":              0,
		"include_total":          false,
		"enable_untyped_queries": true,
		"enable_raw_sql_filters": false,
		"order_by_primary_key":   true,
		"case_sensitive_like":    false,
		"snake_case_params":      false,
		"log_level":              "info",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Options converts the loaded configuration into engine options.
func (c *Config) Options() *autoquery.Options {
	opts := &autoquery.Options{
		IncludeTotal:                  c.IncludeTotal,
		EnableUntypedQueries:          c.EnableUntypedQueries,
		EnableRawSQLFilters:           c.EnableRawSQLFilters,
		OrderByPrimaryKeyOnPagedQuery: c.OrderByPrimaryKey,
		CaseSensitiveLike:             c.CaseSensitiveLike,
		SnakeCaseParams:               c.SnakeCaseParams,
		NamedConnection:               c.NamedConnection,
	}
	if c.MaxLimit > 0 {
		limit := c.MaxLimit
		opts.MaxLimit = &limit
	}
	return opts
}
