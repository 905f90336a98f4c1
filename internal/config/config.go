// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

// Package config loads runtime configuration from a YAML file with
// command-line flag overrides, in that precedence order: defaults, file,
// flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/framehud/framehud/internal/plugin"
)

// DefaultPath is where the runtime looks for its config when no --config
// flag is given.
const DefaultPath = "framehud.yaml"

// Config is the full runtime configuration.
type Config struct {
	// LogFormat selects the log handler: "text" or "json".
	LogFormat string `koanf:"log-format"`
	// LogLevel is the minimum level: debug, info, warn, error.
	LogLevel string `koanf:"log-level"`
	// MetricsAddr is the observability listen address; empty disables the
	// observability server entirely.
	MetricsAddr string `koanf:"metrics-addr"`
	// PluginsDir is the directory scanned for script plugins; empty skips
	// script discovery.
	PluginsDir string `koanf:"plugins-dir"`
	// TickRate is the target frame rate in ticks per second.
	TickRate float64 `koanf:"tick-rate"`
	// WatchInterval is the script source poll interval. Zero disables the
	// watcher.
	WatchInterval time.Duration `koanf:"watch-interval"`
	// Plugins carries per-plugin config overrides, keyed by name.
	Plugins []PluginEntry `koanf:"plugins"`
}

// PluginEntry overrides one plugin's instance config. Enabled and Visible
// are pointers so an absent field keeps the plugin's own default.
type PluginEntry struct {
	Name     string         `koanf:"name"`
	Enabled  *bool          `koanf:"enabled"`
	Visible  *bool          `koanf:"visible"`
	ZIndex   *int           `koanf:"z-index"`
	Settings map[string]any `koanf:"settings"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogFormat:     "text",
		LogLevel:      "info",
		MetricsAddr:   "",
		PluginsDir:    "plugins",
		TickRate:      30,
		WatchInterval: 500 * time.Millisecond,
	}
}

// Load builds the configuration from the file at path (skipped when the file
// does not exist) and the given flag set. Flags win over the file, the file
// wins over defaults.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, oops.In("config").With("path", path).
					Hint("config file is not valid YAML").Wrap(err)
			}
		} else if path != DefaultPath {
			// An explicitly named file must exist; the default path may not.
			return Config{}, oops.In("config").With("path", path).
				Hint("config file not found").Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.In("config").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.In("config").Hint("config does not match the expected shape").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	errb := oops.In("config")

	switch c.LogFormat {
	case "text", "json":
	default:
		return errb.With("log-format", c.LogFormat).
			Hint("log-format must be text or json").New("invalid log format")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errb.With("log-level", c.LogLevel).
			Hint("log-level must be debug, info, warn, or error").New("invalid log level")
	}
	if c.TickRate <= 0 {
		return errb.With("tick-rate", c.TickRate).New("tick-rate must be positive")
	}
	if c.WatchInterval < 0 {
		return errb.With("watch-interval", c.WatchInterval).New("watch-interval must not be negative")
	}

	seen := make(map[string]bool, len(c.Plugins))
	for _, entry := range c.Plugins {
		if entry.Name == "" {
			return errb.Hint("every plugins entry needs a name").New("unnamed plugin entry")
		}
		if seen[entry.Name] {
			return errb.With("plugin", entry.Name).New("duplicate plugin entry")
		}
		seen[entry.Name] = true
	}
	return nil
}

// Apply overlays the entry's set fields onto a base instance config.
func (e PluginEntry) Apply(base plugin.Config) plugin.Config {
	if e.Enabled != nil {
		base.Enabled = *e.Enabled
	}
	if e.Visible != nil {
		base.Visible = *e.Visible
	}
	if e.ZIndex != nil {
		base.ZIndex = *e.ZIndex
	}
	if len(e.Settings) > 0 {
		if base.Settings == nil {
			base.Settings = make(map[string]any, len(e.Settings))
		}
		for k, v := range e.Settings {
			base.Settings[k] = v
		}
	}
	return base
}

// Entry returns the override block for a plugin, if present.
func (c *Config) Entry(name string) (PluginEntry, bool) {
	for _, entry := range c.Plugins {
		if entry.Name == name {
			return entry, true
		}
	}
	return PluginEntry{}, false
}
