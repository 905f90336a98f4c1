// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin

import (
	"github.com/framehud/framehud/internal/bus"
)

// Frame is the opaque mutable buffer threaded through render calls. The
// runtime never interprets its contents; only plugins and the external
// capture/composition collaborator do.
type Frame []byte

// Key identifies a discrete key press supplied by the external input layer.
type Key string

// Context is the shared state handed to every plugin at construction: the
// data bus and the event bus. It is owned by the scheduler and lives as long
// as the scheduler does.
type Context struct {
	Data   *bus.DataBus
	Events *bus.EventBus
}

// Config is the per-instance configuration supplied by the host. Mutable at
// runtime; changes take effect on the next tick.
type Config struct {
	// Enabled gates update and render dispatch.
	Enabled bool
	// Visible gates render only.
	Visible bool
	// ZIndex orders render calls, ascending. Ties break by load order.
	ZIndex int
	// Settings is an opaque key/value mapping passed through to the plugin.
	Settings map[string]any
}

// DefaultConfig returns an enabled, visible config with z-index 0.
func DefaultConfig() Config {
	return Config{Enabled: true, Visible: true}
}

// Setting returns a named setting or def when absent.
func (c Config) Setting(key string, def any) any {
	if v, ok := c.Settings[key]; ok {
		return v
	}
	return def
}

// SettingFloat returns a numeric setting, accepting int and float64, or def.
func (c Config) SettingFloat(key string, def float64) float64 {
	switch v := c.Settings[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// SettingString returns a string setting or def.
func (c Config) SettingString(key, def string) string {
	if v, ok := c.Settings[key].(string); ok {
		return v
	}
	return def
}

// SettingBool returns a boolean setting or def.
func (c Config) SettingBool(key string, def bool) bool {
	if v, ok := c.Settings[key].(bool); ok {
		return v
	}
	return def
}

// Plugin is the fixed capability set every plugin implements. Embed Base to
// pick up no-op defaults for the hooks a plugin does not care about.
//
// All methods run on the scheduler's tick; none may block it. A plugin that
// performs blocking I/O must do so on its own worker and publish results to
// the data bus from a later tick.
type Plugin interface {
	// Init prepares the instance. An error fails the plugin and is logged,
	// never propagated as a fatal host error.
	Init() error
	// Update runs once per tick in load order while the plugin is active.
	Update(delta float64) error
	// Render draws onto the frame and returns it, possibly replaced.
	Render(frame Frame) (Frame, error)
	// HandleKey reports whether the plugin consumed the key press.
	HandleKey(key Key) (bool, error)
	// HandleEvent receives events drained after the tick's update phase.
	HandleEvent(event bus.Event) error
	// Cleanup releases resources. Called before unload and before reload.
	Cleanup() error
}

// Factory constructs a plugin instance with the shared context and its
// per-instance config.
type Factory func(ctx *Context, cfg Config) (Plugin, error)

// Definition couples a plugin's metadata with its factory. Hot reload swaps
// the definition behind the registered name.
type Definition struct {
	Meta Metadata
	New  Factory
}

// Base provides no-op implementations for every optional hook. Init, Update
// and Render do nothing; HandleKey consumes nothing.
type Base struct{}

func (Base) Init() error                       { return nil }
func (Base) Update(float64) error              { return nil }
func (Base) Render(frame Frame) (Frame, error) { return frame, nil }
func (Base) HandleKey(Key) (bool, error)       { return false, nil }
func (Base) HandleEvent(bus.Event) error       { return nil }
func (Base) Cleanup() error                    { return nil }
