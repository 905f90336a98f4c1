// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package bus

import (
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// maxPendingEvents bounds the per-tick queue. Posts beyond the bound are
// dropped with a warning rather than growing without limit.
const maxPendingEvents = 1024

// Event is an ad hoc notification posted by a plugin or the host.
type Event struct {
	ID      ulid.ULID
	Type    string
	Payload any
	Source  string // plugin name, or "host"
	Tick    uint64 // tick the event was posted on
}

// EventBus collects events posted during a tick's update phase for delivery
// after all updates complete. Events posted during delivery land in the next
// tick's queue, so delivery never observes a growing queue.
type EventBus struct {
	pending []Event
	tick    uint64
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// SetTick records the current tick number for stamping posted events.
func (b *EventBus) SetTick(tick uint64) {
	b.tick = tick
}

// Post appends an event to the outgoing queue.
func (b *EventBus) Post(source, eventType string, payload any) {
	if len(b.pending) >= maxPendingEvents {
		slog.Warn("event dropped: pending queue full",
			"source", source,
			"event_type", eventType,
			"limit", maxPendingEvents)
		return
	}
	b.pending = append(b.pending, Event{
		ID:      NewULID(),
		Type:    eventType,
		Payload: payload,
		Source:  source,
		Tick:    b.tick,
	})
}

// Drain returns the queued events and resets the queue. Posts made while the
// returned slice is being delivered accumulate for the next Drain.
func (b *EventBus) Drain() []Event {
	events := b.pending
	b.pending = nil
	return events
}

// Pending returns the number of queued events.
func (b *EventBus) Pending() int {
	return len(b.pending)
}
