// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

// Package builtin contains the plugins compiled into the runtime binary.
// They cover the common HUD surfaces (position source, compass, frame rate,
// plugin control) and double as reference implementations of the plugin
// interface.
package builtin

import (
	"math"

	"github.com/framehud/framehud/internal/plugin"
)

// fixInterval is how often the simulator posts a nav.fix event, in seconds.
const fixInterval = 5.0

// GPSSim simulates a position source: a vehicle moving at constant speed
// whose heading drifts slowly. It provides nav.position and nav.heading and
// posts a nav.fix event at a fixed interval, standing in for real receiver
// hardware during development.
type GPSSim struct {
	plugin.Base
	ctx *plugin.Context

	lat, lon  float64
	heading   float64 // degrees, 0 = north
	speed     float64 // meters per second
	turnRate  float64 // degrees per second
	sinceFix  float64
	fixSerial int
}

// GPSSimDefinition describes the simulator for registration.
func GPSSimDefinition() plugin.Definition {
	return plugin.Definition{
		Meta: plugin.Metadata{
			Name:     "gpssim",
			Version:  "1.0.0",
			Provides: []string{"nav.position", "nav.heading"},
		},
		New: func(ctx *plugin.Context, cfg plugin.Config) (plugin.Plugin, error) {
			return &GPSSim{
				ctx:      ctx,
				lat:      cfg.SettingFloat("lat", 59.3293),
				lon:      cfg.SettingFloat("lon", 18.0686),
				heading:  cfg.SettingFloat("heading", 0),
				speed:    cfg.SettingFloat("speed-mps", 12),
				turnRate: cfg.SettingFloat("turn-rate", 3),
			}, nil
		},
	}
}

// Init publishes the starting position so consumers resolving after the
// simulator see a value on their very first tick.
func (g *GPSSim) Init() error {
	g.publish()
	return nil
}

// Update advances the simulated vehicle and republishes position.
func (g *GPSSim) Update(delta float64) error {
	g.heading = math.Mod(g.heading+g.turnRate*delta+360, 360)

	// Flat-earth advance is fine at simulator scale.
	distance := g.speed * delta
	rad := g.heading * math.Pi / 180
	g.lat += distance * math.Cos(rad) / 111320
	g.lon += distance * math.Sin(rad) / (111320 * math.Cos(g.lat*math.Pi/180))

	g.publish()

	g.sinceFix += delta
	if g.sinceFix >= fixInterval {
		g.sinceFix = 0
		g.fixSerial++
		g.ctx.Events.Post("gpssim", "nav.fix", map[string]any{
			"serial": g.fixSerial,
			"lat":    g.lat,
			"lon":    g.lon,
		})
	}
	return nil
}

func (g *GPSSim) publish() {
	g.ctx.Data.Provide("nav.position", map[string]any{
		"lat": g.lat,
		"lon": g.lon,
	})
	g.ctx.Data.Provide("nav.heading", g.heading)
}
