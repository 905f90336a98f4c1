// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package builtin

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/framehud/framehud/internal/bus"
	"github.com/framehud/framehud/internal/plugin"
)

var cardinals = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Compass renders the current heading onto the frame. It consumes
// nav.heading from whichever plugin provides it; with no provider it renders
// a placeholder instead of failing. The 'c' key switches between cardinal
// and numeric display.
type Compass struct {
	plugin.Base
	ctx *plugin.Context

	heading float64
	haveFix bool
	numeric bool
}

// CompassDefinition describes the compass for registration.
func CompassDefinition() plugin.Definition {
	return plugin.Definition{
		Meta: plugin.Metadata{
			Name:     "compass",
			Version:  "1.1.0",
			Consumes: []string{"nav.heading"},
			Events:   []string{"nav.*"},
		},
		New: func(ctx *plugin.Context, _ plugin.Config) (plugin.Plugin, error) {
			return &Compass{ctx: ctx}, nil
		},
	}
}

// Update samples the heading once per tick so render works from a stable
// value even if the provider rewrites mid-tick.
func (c *Compass) Update(_ float64) error {
	value, _, ok := c.ctx.Data.Lookup("nav.heading")
	if !ok {
		c.haveFix = false
		return nil
	}
	heading, ok := value.(float64)
	if !ok {
		c.haveFix = false
		return nil
	}
	c.heading = heading
	c.haveFix = true
	return nil
}

// Render appends the heading line to the frame.
func (c *Compass) Render(frame plugin.Frame) (plugin.Frame, error) {
	if !c.haveFix {
		return append(frame, []byte("HDG ---\n")...), nil
	}
	if c.numeric {
		return append(frame, []byte(fmt.Sprintf("HDG %05.1f°\n", c.heading))...), nil
	}
	idx := int(math.Mod(c.heading+22.5, 360) / 45)
	return append(frame, []byte(fmt.Sprintf("HDG %s (%03.0f)\n", cardinals[idx], c.heading))...), nil
}

// HandleKey toggles the display mode on 'c'.
func (c *Compass) HandleKey(key plugin.Key) (bool, error) {
	if key != "c" {
		return false, nil
	}
	c.numeric = !c.numeric
	return true, nil
}

// HandleEvent logs position fixes; the nav.* filter means nothing else
// arrives here.
func (c *Compass) HandleEvent(event bus.Event) error {
	slog.Debug("compass received fix", "event", event.Type, "source", event.Source)
	return nil
}
