// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package builtin

import (
	"log/slog"

	"github.com/framehud/framehud/internal/plugin"
)

// Controller is the slice of the scheduler the control plugin needs: enough
// to list plugins and flip their enabled state, nothing more.
type Controller interface {
	Snapshot() []plugin.Status
	SetEnabled(name string, enabled bool) error
	Enabled(name string) bool
}

// Control toggles other plugins at runtime: keys '1' through '9' flip the
// enabled state of the corresponding plugin in load order. Toggles take
// effect on the next tick, which is the scheduler's contract, not ours.
//
// Control itself stays out of its own reach: it never disables itself, so
// the operator cannot lock themselves out.
type Control struct {
	plugin.Base
	ctrl Controller
}

// ControlDefinition describes the control plugin. The controller comes from
// the host, not the plugin context, so the definition is built per scheduler.
func ControlDefinition(ctrl Controller) plugin.Definition {
	return plugin.Definition{
		Meta: plugin.Metadata{
			Name:    "control",
			Version: "1.0.0",
		},
		New: func(_ *plugin.Context, _ plugin.Config) (plugin.Plugin, error) {
			return &Control{ctrl: ctrl}, nil
		},
	}
}

// HandleKey maps '1'..'9' to plugins by load-order position.
func (c *Control) HandleKey(key plugin.Key) (bool, error) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return false, nil
	}
	idx := int(key[0] - '1')

	snapshot := c.ctrl.Snapshot()
	if idx >= len(snapshot) {
		return false, nil
	}
	target := snapshot[idx]
	if target.Name == "control" {
		return true, nil // consumed, refused
	}

	next := !c.ctrl.Enabled(target.Name)
	if err := c.ctrl.SetEnabled(target.Name, next); err != nil {
		return false, err
	}
	slog.Info("plugin toggled", "plugin", target.Name, "enabled", next)
	return true, nil
}
