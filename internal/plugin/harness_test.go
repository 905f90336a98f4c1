// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/framehud/framehud/internal/bus"
	"github.com/framehud/framehud/internal/plugin"
)

// harness wires a registry and scheduler with journaling stub plugins so
// tests can assert on call order across the whole runtime.
type harness struct {
	t       *testing.T
	reg     *plugin.Registry
	sched   *plugin.Scheduler
	journal []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, reg: plugin.NewRegistry()}
	h.sched = plugin.NewScheduler(h.reg)
	return h
}

func (h *harness) log(format string, args ...any) {
	h.journal = append(h.journal, fmt.Sprintf(format, args...))
}

// add registers a journaling stub under the given metadata with default
// config.
func (h *harness) add(meta plugin.Metadata) *stubPlugin {
	return h.addCfg(meta, plugin.DefaultConfig())
}

func (h *harness) addCfg(meta plugin.Metadata, cfg plugin.Config) *stubPlugin {
	h.t.Helper()
	stub := &stubPlugin{h: h, name: meta.Name}
	def := plugin.Definition{
		Meta: meta,
		New: func(_ *plugin.Context, _ plugin.Config) (plugin.Plugin, error) {
			stub.constructed++
			return stub, nil
		},
	}
	require.NoError(h.t, h.reg.Register(def, cfg))
	return stub
}

func (h *harness) status(name string) plugin.Status {
	h.t.Helper()
	for _, st := range h.sched.Snapshot() {
		if st.Name == name {
			return st
		}
	}
	h.t.Fatalf("no status for plugin %q", name)
	return plugin.Status{}
}

// meta builds minimal metadata for a test plugin.
func meta(name string, mutate ...func(*plugin.Metadata)) plugin.Metadata {
	m := plugin.Metadata{Name: name, Version: "1.0.0"}
	for _, fn := range mutate {
		fn(&m)
	}
	return m
}

func provides(keys ...string) func(*plugin.Metadata) {
	return func(m *plugin.Metadata) { m.Provides = keys }
}

func consumes(keys ...string) func(*plugin.Metadata) {
	return func(m *plugin.Metadata) { m.Consumes = keys }
}

func dependsOn(names ...string) func(*plugin.Metadata) {
	return func(m *plugin.Metadata) { m.Dependencies = names }
}

func filters(patterns ...string) func(*plugin.Metadata) {
	return func(m *plugin.Metadata) { m.Events = patterns }
}

// stubPlugin journals every lifecycle call and fails or panics on demand.
type stubPlugin struct {
	plugin.Base
	h    *harness
	name string

	constructed int
	initErr     error
	updateErr   error
	renderErr   error
	eventErr    error
	panicIn     string // lifecycle phase to panic in
	consume     plugin.Key

	events []bus.Event
}

func (s *stubPlugin) maybeBlow(phase string) {
	if s.panicIn == phase {
		panic("boom in " + phase)
	}
}

func (s *stubPlugin) Init() error {
	s.h.log("%s:init", s.name)
	s.maybeBlow("init")
	return s.initErr
}

func (s *stubPlugin) Update(_ float64) error {
	s.h.log("%s:update", s.name)
	s.maybeBlow("update")
	return s.updateErr
}

func (s *stubPlugin) Render(frame plugin.Frame) (plugin.Frame, error) {
	s.h.log("%s:render", s.name)
	s.maybeBlow("render")
	if s.renderErr != nil {
		return frame, s.renderErr
	}
	return append(frame, []byte(s.name+";")...), nil
}

func (s *stubPlugin) HandleKey(key plugin.Key) (bool, error) {
	s.h.log("%s:key:%s", s.name, key)
	s.maybeBlow("key")
	return s.consume != "" && key == s.consume, nil
}

func (s *stubPlugin) HandleEvent(event bus.Event) error {
	s.h.log("%s:event:%s", s.name, event.Type)
	s.maybeBlow("event")
	s.events = append(s.events, event)
	return s.eventErr
}

func (s *stubPlugin) Cleanup() error {
	s.h.log("%s:cleanup", s.name)
	s.maybeBlow("cleanup")
	return nil
}
