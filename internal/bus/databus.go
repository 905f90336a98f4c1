// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

// Package bus provides the shared data bus and event bus that plugins use to
// exchange values and notifications within a tick.
package bus

import (
	"errors"

	"github.com/samber/oops"
)

// ErrMissingDependency is returned by Require when a key has no value, and is
// wrapped by the resolver when a hard dependency is absent or failed.
var ErrMissingDependency = errors.New("missing dependency")

// entry is the current value for a key and the tick it was written on.
type entry struct {
	value any
	tick  uint64
}

// DataBus is a last-write-wins key/value store shared by all plugins.
//
// The runtime is single-threaded and tick-driven, so the bus needs no locking:
// every read and write happens from plugin code driven by the scheduler.
type DataBus struct {
	entries map[string]entry
	tick    uint64
}

// NewDataBus creates an empty data bus.
func NewDataBus() *DataBus {
	return &DataBus{entries: make(map[string]entry)}
}

// SetTick records the current tick number. Writes made after this call are
// stamped with it. Called by the scheduler at the start of each tick.
func (b *DataBus) SetTick(tick uint64) {
	b.tick = tick
}

// Provide writes a value unconditionally. The value is visible to every read
// from this point onward, including reads later in the same tick.
func (b *DataBus) Provide(key string, value any) {
	b.entries[key] = entry{value: value, tick: b.tick}
}

// Get returns the current value for key, or def if the key has never been
// provided. Get never fails.
func (b *DataBus) Get(key string, def any) any {
	if e, ok := b.entries[key]; ok {
		return e.value
	}
	return def
}

// Require returns the current value for key or an ErrMissingDependency error
// carrying msg when the key is absent.
func (b *DataBus) Require(key, msg string) (any, error) {
	e, ok := b.entries[key]
	if !ok {
		return nil, oops.
			With("key", key).
			Hint(msg).
			Wrap(ErrMissingDependency)
	}
	return e.value, nil
}

// Lookup returns the value and the tick it was written on.
func (b *DataBus) Lookup(key string) (value any, tick uint64, ok bool) {
	e, ok := b.entries[key]
	return e.value, e.tick, ok
}

// Delete removes a key. Used by hosts that want to clear stale values; the
// runtime itself never deletes entries, not even on plugin reload.
func (b *DataBus) Delete(key string) {
	delete(b.entries, key)
}

// Keys returns the number of keys currently on the bus.
func (b *DataBus) Keys() int {
	return len(b.entries)
}
