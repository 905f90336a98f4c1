// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin

import (
	"errors"

	"github.com/framehud/framehud/internal/bus"
)

// ErrMissingDependency is shared with the data bus: Require uses it for
// absent keys, the resolver for absent or failed hard dependencies.
var ErrMissingDependency = bus.ErrMissingDependency

// Sentinel errors for the runtime failure taxonomy. Failures are always
// wrapped with oops context (plugin names, cause) before they surface, so
// callers match with errors.Is.
var (
	// ErrConfiguration reports malformed or duplicate metadata. The plugin is
	// never registered; other registrations are unaffected.
	ErrConfiguration = errors.New("invalid plugin configuration")

	// ErrCircularDependency reports a cycle among hard dependencies. Every
	// member of the cycle fails; plugins outside the cycle are unaffected.
	ErrCircularDependency = errors.New("circular dependency")

	// ErrInitialization reports a plugin whose Init returned an error.
	ErrInitialization = errors.New("plugin initialization failed")

	// ErrRuntimeFault reports an error or panic during Update, Render,
	// HandleKey, or HandleEvent. The plugin is failed for the rest of the
	// session; it is not retried.
	ErrRuntimeFault = errors.New("plugin runtime fault")

	// ErrReload reports a hot reload whose new definition failed to
	// initialize. The plugin is left failed; there is no rollback.
	ErrReload = errors.New("plugin reload failed")

	// ErrUnknownPlugin reports an operation targeting a name that was never
	// registered.
	ErrUnknownPlugin = errors.New("unknown plugin")
)
