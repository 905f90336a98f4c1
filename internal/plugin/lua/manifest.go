// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package lua

import (
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/framehud/framehud/internal/plugin"
)

// Manifest represents a script plugin's plugin.yaml file: the metadata
// contract plus where the code lives and how the instance starts out.
type Manifest struct {
	plugin.Metadata `yaml:",inline"`

	// Entry is the Lua source file, relative to the plugin directory.
	Entry string `yaml:"entry" json:"entry"`

	// Defaults seeds the instance config. Omitted fields fall back to the
	// runtime defaults (enabled, visible, z-index 0).
	Defaults *Defaults `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// Defaults is the optional config block of a manifest. Enabled and Visible
// are pointers so "absent" and "false" stay distinguishable.
type Defaults struct {
	Enabled  *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Visible  *bool          `yaml:"visible,omitempty" json:"visible,omitempty"`
	ZIndex   int            `yaml:"z-index,omitempty" json:"z-index,omitempty"`
	Settings map[string]any `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.In("lua").Hint("manifest is empty").Wrap(plugin.ErrConfiguration)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.In("lua").Hint("manifest is not valid YAML").
			Wrapf(plugin.ErrConfiguration, "%v", err)
	}
	if err := m.Metadata.Validate(); err != nil {
		return nil, err
	}
	if m.Entry == "" {
		return nil, oops.In("lua").With("plugin", m.Name).
			Hint("entry is required").Wrap(plugin.ErrConfiguration)
	}
	return &m, nil
}

// Config builds the instance config the manifest asks for.
func (m *Manifest) Config() plugin.Config {
	cfg := plugin.DefaultConfig()
	if m.Defaults == nil {
		return cfg
	}
	if m.Defaults.Enabled != nil {
		cfg.Enabled = *m.Defaults.Enabled
	}
	if m.Defaults.Visible != nil {
		cfg.Visible = *m.Defaults.Visible
	}
	cfg.ZIndex = m.Defaults.ZIndex
	cfg.Settings = m.Defaults.Settings
	return cfg
}
