// Package config loads nxsql settings.
//
// Settings are layered, later layers winning: built-in defaults, the
// YAML config file, NXSQL_* environment variables and finally
// command-line flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment variables read by Load.
// NXSQL_LOG_LEVEL sets log_level.
const EnvPrefix = "NXSQL_"

// Engines accepted by the engine setting.
const (
	EngineNative   = "native"   // built-in SQLite binding
	EngineDatabase = "database" // a database/sql driver via drvsqlite
)

// DefaultFiles are tried in order when no config file is named.
var DefaultFiles = []string{"nxsql.yaml", "nxsql.yml"}

// Config holds the nxsql settings.
type Config struct {
	DB        string `koanf:"db"`
	Ticks     bool   `koanf:"ticks"`
	Trace     bool   `koanf:"trace"`
	Time      bool   `koanf:"time"`
	Engine    string `koanf:"engine"`
	Format    string `koanf:"format"`
	Addr      string `koanf:"addr"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"db":         ":memory:",
		"ticks":      true,
		"trace":      false,
		"time":       false,
		"engine":     EngineNative,
		"format":     "table",
		"addr":       "localhost:8080",
		"log_level":  "info",
		"log_format": "text",
	}
}

// findConfigFile returns explicit, or the first of DefaultFiles that
// exists, or "".
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds a Config from all layers. cfgFile names the YAML file;
// if empty, DefaultFiles are looked for in the working directory.
// flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path := findConfigFile(cfgFile)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings with values nxsql does not understand.
func (c *Config) Validate() error {
	var errs []error
	switch c.Engine {
	case EngineNative, EngineDatabase:
	default:
		errs = append(errs, fmt.Errorf("unknown engine %q (want %s or %s)", c.Engine, EngineNative, EngineDatabase))
	}
	switch c.Format {
	case "table", "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q (want table, json or csv)", c.Format))
	}
	if c.DB == "" {
		errs = append(errs, errors.New("db must not be empty"))
	}
	return errors.Join(errs...)
}
