// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package builtin

import (
	"fmt"

	"github.com/framehud/framehud/internal/plugin"
)

// smoothing is the exponential moving average factor for the fps estimate.
// Close to 1 favors stability over responsiveness.
const smoothing = 0.9

// FPSCounter estimates the effective frame rate from tick deltas and
// provides it as hud.fps for anything that wants to adapt to load. The 'f'
// key toggles an extended readout with frame time.
type FPSCounter struct {
	plugin.Base
	ctx *plugin.Context

	fps      float64
	delta    float64
	extended bool
}

// FPSCounterDefinition describes the counter for registration.
func FPSCounterDefinition() plugin.Definition {
	return plugin.Definition{
		Meta: plugin.Metadata{
			Name:     "fpscounter",
			Version:  "1.0.0",
			Provides: []string{"hud.fps"},
		},
		New: func(ctx *plugin.Context, _ plugin.Config) (plugin.Plugin, error) {
			return &FPSCounter{ctx: ctx}, nil
		},
	}
}

// Update folds the latest delta into the smoothed estimate and publishes it.
func (f *FPSCounter) Update(delta float64) error {
	f.delta = delta
	if delta > 0 {
		instant := 1.0 / delta
		if f.fps == 0 {
			f.fps = instant
		} else {
			f.fps = smoothing*f.fps + (1-smoothing)*instant
		}
	}
	f.ctx.Data.Provide("hud.fps", f.fps)
	return nil
}

// Render appends the fps readout to the frame.
func (f *FPSCounter) Render(frame plugin.Frame) (plugin.Frame, error) {
	if f.extended {
		return append(frame, []byte(fmt.Sprintf("FPS %5.1f (%.1f ms)\n", f.fps, f.delta*1000))...), nil
	}
	return append(frame, []byte(fmt.Sprintf("FPS %5.1f\n", f.fps))...), nil
}

// HandleKey toggles the extended readout on 'f'.
func (f *FPSCounter) HandleKey(key plugin.Key) (bool, error) {
	if key != "f" {
		return false, nil
	}
	f.extended = !f.extended
	return true, nil
}
