// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin

// State is the lifecycle state of a plugin instance.
//
// Unresolved → Initializing → Active ⇄ Disabled → Reloading → Active/Failed
// → Unloaded. Failed is terminal for the current instance; the name stays
// registered so dependents can observe the failure. Unloaded is entered on
// explicit removal or shutdown, always after Cleanup.
type State uint8

const (
	StateUnresolved State = iota
	StateInitializing
	StateActive
	StateDisabled
	StateReloading
	StateFailed
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	case StateReloading:
		return "reloading"
	case StateFailed:
		return "failed"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}
