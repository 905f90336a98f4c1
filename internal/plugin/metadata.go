// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

// Package plugin implements the per-frame plugin runtime: metadata contracts,
// the dependency resolver, the tick scheduler, and hot reload.
package plugin

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with a lowercase letter,
// followed by lowercase letters, digits, or hyphens, and not end with a
// hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// Metadata is the static description of a plugin type. One value per type,
// immutable after registration.
type Metadata struct {
	// Name uniquely identifies the plugin across the registry.
	Name string `yaml:"name" json:"name"`
	// Version is a semantic version string.
	Version string `yaml:"version" json:"version"`
	// Provides lists data-bus keys this plugin may write.
	Provides []string `yaml:"provides,omitempty" json:"provides,omitempty"`
	// Consumes lists data-bus keys this plugin reads as soft dependencies.
	// Absence of a provider never blocks initialization.
	Consumes []string `yaml:"consumes,omitempty" json:"consumes,omitempty"`
	// Dependencies names plugins that must initialize successfully before
	// this one (hard dependencies).
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	// Events holds glob patterns selecting which event types this plugin
	// receives. Empty means all events.
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`
}

// Validate checks the metadata contract. Violations are ErrConfiguration.
func (m *Metadata) Validate() error {
	errb := oops.In("metadata").With("plugin", m.Name)

	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return errb.
			Hint("names start with a-z and contain only a-z, 0-9, and hyphens").
			Wrap(ErrConfiguration)
	}
	if len(m.Name) > maxNameLength {
		return errb.With("length", len(m.Name)).With("max", maxNameLength).Wrap(ErrConfiguration)
	}
	if m.Version == "" {
		return errb.Hint("version is required").Wrap(ErrConfiguration)
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return errb.With("version", m.Version).Hint("version must be semver").Wrapf(ErrConfiguration, "%v", err)
	}
	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return errb.Hint("a plugin must not depend on itself").Wrap(ErrConfiguration)
		}
		if dep == "" {
			return errb.Hint("dependency names must be non-empty").Wrap(ErrConfiguration)
		}
	}
	for _, key := range m.Provides {
		if key == "" {
			return errb.Hint("provided keys must be non-empty").Wrap(ErrConfiguration)
		}
	}
	for _, key := range m.Consumes {
		if key == "" {
			return errb.Hint("consumed keys must be non-empty").Wrap(ErrConfiguration)
		}
	}
	for _, pattern := range m.Events {
		if _, err := glob.Compile(pattern); err != nil {
			return errb.With("pattern", pattern).Hint("event filters must be valid globs").Wrapf(ErrConfiguration, "%v", err)
		}
	}
	return nil
}

// eventFilters compiles the event glob patterns. Validate has already
// checked them, so compilation cannot fail here.
func (m *Metadata) eventFilters() []glob.Glob {
	if len(m.Events) == 0 {
		return nil
	}
	filters := make([]glob.Glob, 0, len(m.Events))
	for _, pattern := range m.Events {
		filters = append(filters, glob.MustCompile(pattern))
	}
	return filters
}
