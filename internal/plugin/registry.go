// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// record tracks one registered plugin: its definition, per-instance config,
// lifecycle state, and the live instance when one exists.
type record struct {
	def     Definition
	cfg     Config
	order   int // registration index, the deterministic tie-break
	state   State
	inst    Plugin
	failure error
	filters []glob.Glob // compiled event filters; nil = all events
}

// Registry holds plugin definitions and instances behind stable name-keyed
// handles. Registration order is preserved for deterministic resolution.
type Registry struct {
	records map[string]*record
	names   []string // registration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*record)}
}

// Register validates the definition's metadata and adds it with the given
// config. A validation failure or duplicate name is ErrConfiguration and
// leaves every other registration untouched.
func (r *Registry) Register(def Definition, cfg Config) error {
	if err := def.Meta.Validate(); err != nil {
		return err
	}
	if def.New == nil {
		return oops.In("registry").With("plugin", def.Meta.Name).
			Hint("definition has no factory").Wrap(ErrConfiguration)
	}
	if _, exists := r.records[def.Meta.Name]; exists {
		return oops.In("registry").With("plugin", def.Meta.Name).
			Hint("name already registered").Wrap(ErrConfiguration)
	}

	r.records[def.Meta.Name] = &record{
		def:     def,
		cfg:     cfg,
		order:   len(r.names),
		state:   StateUnresolved,
		filters: def.Meta.eventFilters(),
	}
	r.names = append(r.names, def.Meta.Name)
	return nil
}

// swap replaces the definition behind name, keeping config and registration
// order. The new metadata must carry the same name.
func (r *Registry) swap(name string, def Definition) error {
	rec, ok := r.records[name]
	if !ok {
		return oops.In("registry").With("plugin", name).Wrap(ErrUnknownPlugin)
	}
	if err := def.Meta.Validate(); err != nil {
		return err
	}
	if def.Meta.Name != name {
		return oops.In("registry").With("plugin", name).With("new_name", def.Meta.Name).
			Hint("reload cannot rename a plugin").Wrap(ErrConfiguration)
	}
	if def.New == nil {
		return oops.In("registry").With("plugin", name).
			Hint("definition has no factory").Wrap(ErrConfiguration)
	}
	rec.def = def
	rec.filters = def.Meta.eventFilters()
	return nil
}

// get returns the record for name.
func (r *Registry) get(name string) (*record, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

// Names returns the registered names in registration order, including failed
// and unloaded plugins.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Metadata returns the metadata registered under name.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	rec, ok := r.records[name]
	if !ok {
		return Metadata{}, false
	}
	return rec.def.Meta, true
}

// State returns the lifecycle state of name.
func (r *Registry) State(name string) (State, bool) {
	rec, ok := r.records[name]
	if !ok {
		return StateUnresolved, false
	}
	return rec.state, true
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	return len(r.names)
}
