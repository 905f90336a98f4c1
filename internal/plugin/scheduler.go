// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/framehud/framehud/internal/bus"
	"github.com/framehud/framehud/internal/observability"
)

// Scheduler drives every plugin through its lifecycle once per tick. It owns
// the data bus and event bus and passes them into every plugin constructor.
//
// The scheduler is single-threaded by design: one tick runs update for every
// active plugin in load order, then delivers queued events, then renders
// visible plugins in z-index order. No plugin code runs concurrently with
// another plugin's code, which is what makes the buses lock-free and load
// order a complete contract for who sees what, when.
type Scheduler struct {
	reg     *Registry
	shared  *Context
	metrics *observability.Metrics

	tick      uint64
	loadOrder []string
	loadIndex map[string]int

	// active is the per-tick dispatch snapshot. Enable/disable toggles made
	// mid-tick only affect the next snapshot.
	active []string
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithMetrics wires runtime metrics into the scheduler. Nil-safe; the
// scheduler runs identically without metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// NewScheduler creates a scheduler over the registry. The data and event
// buses are created here and live exactly as long as the scheduler.
func NewScheduler(reg *Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		reg: reg,
		shared: &Context{
			Data:   bus.NewDataBus(),
			Events: bus.NewEventBus(),
		},
		loadIndex: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Context returns the shared context (data bus + event bus).
func (s *Scheduler) Context() *Context {
	return s.shared
}

// LoadOrder returns the current load order.
func (s *Scheduler) LoadOrder() []string {
	out := make([]string, len(s.loadOrder))
	copy(out, s.loadOrder)
	return out
}

// Resolve computes load order and initializes every plugin that has no
// instance yet, in load order. Per-plugin failures are recorded and logged,
// never propagated: the scheduler does not abort because one plugin failed.
func (s *Scheduler) Resolve() Resolution {
	rv := &resolver{reg: s.reg}
	res := rv.resolve()
	s.setLoadOrder(res.LoadOrder)

	for name, err := range res.Failures {
		slog.Error("plugin failed during resolution", "plugin", name, "error", err)
	}
	for _, cycle := range res.Cycles {
		slog.Error("circular dependency detected", "cycle", cycle)
	}

	for _, name := range s.loadOrder {
		rec := s.reg.records[name]
		if rec.state != StateUnresolved && rec.state != StateReloading {
			continue
		}
		if err := s.initialize(rec); err != nil {
			res.Failures[name] = err
		}
	}
	return res
}

func (s *Scheduler) setLoadOrder(order []string) {
	s.loadOrder = order
	s.loadIndex = make(map[string]int, len(order))
	for i, name := range order {
		s.loadIndex[name] = i
	}
}

// initialize constructs and initializes one plugin. A hard dependency that
// failed since resolution fails the dependent before its Init is attempted.
func (s *Scheduler) initialize(rec *record) error {
	name := rec.def.Meta.Name

	for _, dep := range rec.def.Meta.Dependencies {
		depRec, ok := s.reg.records[dep]
		if !ok || depRec.state == StateFailed || depRec.state == StateUnloaded {
			err := oops.In("scheduler").
				With("plugin", name).
				With("dependency", dep).
				Wrap(ErrMissingDependency)
			s.fail(rec, "init", err)
			return err
		}
	}

	rec.state = StateInitializing
	inst, err := s.construct(rec)
	if err == nil {
		err = s.guard(name, func() error { return inst.Init() })
	}
	if err != nil {
		wrapped := oops.In("scheduler").With("plugin", name).
			Wrap(errors.Join(ErrInitialization, err))
		s.fail(rec, "init", wrapped)
		return wrapped
	}

	rec.inst = inst
	if rec.cfg.Enabled {
		rec.state = StateActive
	} else {
		rec.state = StateDisabled
	}
	slog.Info("plugin initialized",
		"plugin", name,
		"version", rec.def.Meta.Version,
		"provides", rec.def.Meta.Provides,
		"state", rec.state.String())
	return nil
}

// construct calls the factory under panic protection.
func (s *Scheduler) construct(rec *record) (Plugin, error) {
	var inst Plugin
	err := s.guard(rec.def.Meta.Name, func() error {
		var err error
		inst, err = rec.def.New(s.shared, rec.cfg)
		return err
	})
	return inst, err
}

// Tick runs one frame: update phase, event delivery, render phase. The frame
// buffer threads through every visible plugin's render and is returned,
// possibly replaced. Delta is the seconds elapsed since the previous tick,
// supplied by the external loop.
func (s *Scheduler) Tick(delta float64, frame Frame) Frame {
	s.tick++
	s.shared.Data.SetTick(s.tick)
	s.shared.Events.SetTick(s.tick)
	s.snapshotActive()

	s.updateAll(delta)
	s.deliverEvents()
	frame = s.renderAll(frame)

	if s.metrics != nil {
		s.metrics.TicksTotal.Inc()
	}
	return frame
}

// TickCount returns the number of completed ticks.
func (s *Scheduler) TickCount() uint64 {
	return s.tick
}

// snapshotActive reconciles enabled toggles at the tick boundary and fixes
// the dispatch set for this tick.
func (s *Scheduler) snapshotActive() {
	s.active = s.active[:0]
	for _, name := range s.loadOrder {
		rec := s.reg.records[name]
		switch rec.state {
		case StateActive:
			if !rec.cfg.Enabled {
				rec.state = StateDisabled
				continue
			}
		case StateDisabled:
			if !rec.cfg.Enabled {
				continue
			}
			rec.state = StateActive
		default:
			continue
		}
		s.active = append(s.active, name)
	}
}

func (s *Scheduler) updateAll(delta float64) {
	for _, name := range s.active {
		rec := s.reg.records[name]
		if rec.state != StateActive {
			continue // failed earlier this tick
		}
		start := time.Now()
		if err := s.guard(name, func() error { return rec.inst.Update(delta) }); err != nil {
			s.failRuntime(rec, "update", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.UpdateDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}
}

// deliverEvents drains the per-tick queue and delivers each event to every
// active plugin in load order, regardless of who posted it. Events posted
// during delivery stay queued for the next tick.
func (s *Scheduler) deliverEvents() {
	events := s.shared.Events.Drain()
	for _, event := range events {
		for _, name := range s.active {
			rec := s.reg.records[name]
			if rec.state != StateActive {
				continue
			}
			if !matchesFilters(rec.filters, event.Type) {
				continue
			}
			if err := s.guard(name, func() error { return rec.inst.HandleEvent(event) }); err != nil {
				s.failRuntime(rec, "event", err)
			}
		}
	}
}

// renderAll draws visible active plugins in ascending z-index order, ties
// broken by load order. Render order is independent of the dependency graph.
func (s *Scheduler) renderAll(frame Frame) Frame {
	var visible []string
	for _, name := range s.active {
		rec := s.reg.records[name]
		if rec.state == StateActive && rec.cfg.Visible {
			visible = append(visible, name)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		zi := s.reg.records[visible[i]].cfg.ZIndex
		zj := s.reg.records[visible[j]].cfg.ZIndex
		if zi != zj {
			return zi < zj
		}
		return s.loadIndex[visible[i]] < s.loadIndex[visible[j]]
	})

	for _, name := range visible {
		rec := s.reg.records[name]
		if rec.state != StateActive {
			continue
		}
		var next Frame
		err := s.guard(name, func() error {
			var err error
			next, err = rec.inst.Render(frame)
			return err
		})
		if err != nil {
			s.failRuntime(rec, "render", err)
			continue // frame keeps its last good contents
		}
		frame = next
	}
	return frame
}

// HandleKey offers a key press to active plugins in load order. The first
// plugin that consumes it stops dispatch; an unconsumed key is dropped.
func (s *Scheduler) HandleKey(key Key) bool {
	for _, name := range s.loadOrder {
		rec := s.reg.records[name]
		if rec.state != StateActive {
			continue
		}
		var consumed bool
		err := s.guard(name, func() error {
			var err error
			consumed, err = rec.inst.HandleKey(key)
			return err
		})
		if err != nil {
			s.failRuntime(rec, "key", err)
			continue
		}
		if consumed {
			return true
		}
	}
	return false
}

// SetEnabled toggles update/render dispatch for a plugin. Takes effect at
// the next tick boundary and never requires re-resolution.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	rec, ok := s.reg.get(name)
	if !ok {
		return oops.In("scheduler").With("plugin", name).Wrap(ErrUnknownPlugin)
	}
	rec.cfg.Enabled = enabled
	return nil
}

// SetVisible toggles render dispatch only, effective next tick.
func (s *Scheduler) SetVisible(name string, visible bool) error {
	rec, ok := s.reg.get(name)
	if !ok {
		return oops.In("scheduler").With("plugin", name).Wrap(ErrUnknownPlugin)
	}
	rec.cfg.Visible = visible
	return nil
}

// Visible reports whether a plugin renders.
func (s *Scheduler) Visible(name string) bool {
	rec, ok := s.reg.get(name)
	return ok && rec.cfg.Visible
}

// Enabled reports whether a plugin is dispatched.
func (s *Scheduler) Enabled(name string) bool {
	rec, ok := s.reg.get(name)
	return ok && rec.cfg.Enabled
}

// Reload replaces a plugin's definition and rebuilds it without restarting
// the host. The old instance is cleaned up first, then the new definition is
// swapped in, the graph re-resolved, and the plugin re-initialized. A nil
// definition re-initializes from the existing one, which is how file-backed
// plugins pick up changed sources.
//
// Reload runs between ticks only; the single-threaded host guarantees no
// tick is in flight. On failure the plugin is left failed with ErrReload and
// there is no rollback to the previous definition.
func (s *Scheduler) Reload(name string, def *Definition) error {
	rec, ok := s.reg.get(name)
	if !ok {
		return oops.In("scheduler").With("plugin", name).Wrap(ErrUnknownPlugin)
	}
	if rec.state == StateUnloaded {
		return oops.In("scheduler").With("plugin", name).
			Hint("plugin was unloaded; register it again instead").
			Wrap(ErrUnknownPlugin)
	}

	slog.Info("reloading plugin", "plugin", name)
	s.cleanup(rec)
	rec.inst = nil
	rec.failure = nil
	rec.state = StateReloading

	if def != nil {
		if err := s.reg.swap(name, *def); err != nil {
			wrapped := oops.In("scheduler").With("plugin", name).
				Wrap(errors.Join(ErrReload, err))
			s.fail(rec, "reload", wrapped)
			s.recordReload(name, false)
			return wrapped
		}
	}

	// Re-resolution also re-initializes the reloading record; dependency
	// edges may have changed with the new metadata.
	s.Resolve()

	if rec.state == StateFailed {
		wrapped := oops.In("scheduler").With("plugin", name).
			Wrap(errors.Join(ErrReload, rec.failure))
		rec.failure = wrapped
		s.recordReload(name, false)
		return wrapped
	}

	s.recordReload(name, true)
	slog.Info("plugin reloaded", "plugin", name, "version", rec.def.Meta.Version)
	return nil
}

func (s *Scheduler) recordReload(name string, ok bool) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	s.metrics.Reloads.WithLabelValues(name, result).Inc()
}

// Remove unloads a plugin explicitly: cleanup, then Unloaded. The record
// stays in the registry so dependents observe the absence on the next
// resolution.
func (s *Scheduler) Remove(name string) error {
	rec, ok := s.reg.get(name)
	if !ok {
		return oops.In("scheduler").With("plugin", name).Wrap(ErrUnknownPlugin)
	}
	s.cleanup(rec)
	rec.state = StateUnloaded
	rec.inst = nil
	s.setLoadOrder(removeName(s.loadOrder, name))
	slog.Info("plugin unloaded", "plugin", name)
	return nil
}

// Shutdown cleans up every live instance, in reverse load order first. A
// failed plugin drops out of the load order on the next resolution but may
// still hold a live instance; Unloaded is always preceded by cleanup, so a
// second pass sweeps those in reverse registration order.
func (s *Scheduler) Shutdown() {
	for i := len(s.loadOrder) - 1; i >= 0; i-- {
		s.unload(s.reg.records[s.loadOrder[i]])
	}
	for i := len(s.reg.names) - 1; i >= 0; i-- {
		s.unload(s.reg.records[s.reg.names[i]])
	}
	s.loadOrder = nil
	s.loadIndex = map[string]int{}
}

func (s *Scheduler) unload(rec *record) {
	if rec.inst == nil {
		return
	}
	s.cleanup(rec)
	rec.state = StateUnloaded
	rec.inst = nil
}

func (s *Scheduler) cleanup(rec *record) {
	if rec.inst == nil {
		return
	}
	name := rec.def.Meta.Name
	if err := s.guard(name, func() error { return rec.inst.Cleanup() }); err != nil {
		slog.Warn("plugin cleanup failed", "plugin", name, "error", err)
	}
}

// Status describes one plugin for hosts and operator surfaces.
type Status struct {
	Name    string
	Version string
	State   State
	Enabled bool
	Visible bool
	ZIndex  int
	Err     error
}

// Snapshot reports every registered plugin, load-ordered first, then the
// rest (failed, unloaded) in registration order.
func (s *Scheduler) Snapshot() []Status {
	seen := make(map[string]bool, len(s.loadOrder))
	names := make([]string, 0, s.reg.Len())
	for _, name := range s.loadOrder {
		names = append(names, name)
		seen[name] = true
	}
	for _, name := range s.reg.names {
		if !seen[name] {
			names = append(names, name)
		}
	}

	out := make([]Status, 0, len(names))
	for _, name := range names {
		rec := s.reg.records[name]
		out = append(out, Status{
			Name:    name,
			Version: rec.def.Meta.Version,
			State:   rec.state,
			Enabled: rec.cfg.Enabled,
			Visible: rec.cfg.Visible,
			ZIndex:  rec.cfg.ZIndex,
			Err:     rec.failure,
		})
	}
	return out
}

// guard runs a plugin call, converting a panic into an error so one plugin
// can never take down the host.
func (s *Scheduler) guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.In("scheduler").With("plugin", name).
				Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// failRuntime marks a plugin failed for the remainder of the session after a
// fault in update, render, event, or key handling. It is not retried.
func (s *Scheduler) failRuntime(rec *record, phase string, cause error) {
	err := oops.In("scheduler").
		With("plugin", rec.def.Meta.Name).
		With("phase", phase).
		Wrap(errors.Join(ErrRuntimeFault, cause))
	s.fail(rec, phase, err)
}

func (s *Scheduler) fail(rec *record, phase string, err error) {
	rec.state = StateFailed
	rec.failure = err
	slog.Error("plugin failed",
		"plugin", rec.def.Meta.Name,
		"phase", phase,
		"error", err)
	if s.metrics != nil {
		s.metrics.PluginFailures.WithLabelValues(rec.def.Meta.Name, phase).Inc()
	}
}

func matchesFilters(filters []glob.Glob, eventType string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Match(eventType) {
			return true
		}
	}
	return false
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
