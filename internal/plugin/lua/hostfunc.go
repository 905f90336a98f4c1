// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package lua

import (
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/framehud/framehud/internal/plugin"
)

// registerHostFunctions installs the hud.* module into a plugin's state,
// bound to that plugin's name and the shared context. Scripts talk to the
// rest of the runtime exclusively through these functions.
func registerHostFunctions(L *lua.LState, name string, ctx *plugin.Context, cfg plugin.Config) {
	mod := L.NewTable()

	L.SetField(mod, "log", L.NewFunction(logFn(name)))
	L.SetField(mod, "provide", L.NewFunction(provideFn(ctx)))
	L.SetField(mod, "get", L.NewFunction(getFn(ctx)))
	L.SetField(mod, "require", L.NewFunction(requireFn(ctx)))
	L.SetField(mod, "post", L.NewFunction(postFn(name, ctx)))
	L.SetField(mod, "setting", L.NewFunction(settingFn(cfg)))

	L.SetGlobal("hud", mod)
}

func logFn(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		message := L.CheckString(2)

		logger := slog.Default().With("plugin", name)
		switch level {
		case "debug":
			logger.Debug(message)
		case "info":
			logger.Info(message)
		case "warn":
			logger.Warn(message)
		case "error":
			logger.Error(message)
		default:
			logger.Info(message)
		}
		return 0
	}
}

// hud.provide(key, value) publishes to the data bus.
func provideFn(ctx *plugin.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		value := fromLua(L.Get(2))
		ctx.Data.Provide(key, value)
		return 0
	}
}

// hud.get(key, default) reads from the data bus, returning default when the
// key is absent.
func getFn(ctx *plugin.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		def := L.Get(2)
		value, _, ok := ctx.Data.Lookup(key)
		if !ok {
			L.Push(def)
			return 1
		}
		L.Push(toLua(L, value))
		return 1
	}
}

// hud.require(key) reads from the data bus, returning value, err. err is a
// string when the key is absent, nil otherwise.
func requireFn(ctx *plugin.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		value, err := ctx.Data.Require(key, "")
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(toLua(L, value))
		L.Push(lua.LNil)
		return 2
	}
}

// hud.post(type, payload) queues an event for delivery next tick.
func postFn(name string, ctx *plugin.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		eventType := L.CheckString(1)
		payload := fromLua(L.Get(2))
		ctx.Events.Post(name, eventType, payload)
		return 0
	}
}

// hud.setting(key, default) reads the plugin's own config settings.
func settingFn(cfg plugin.Config) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		def := L.Get(2)
		value, ok := cfg.Settings[key]
		if !ok {
			L.Push(def)
			return 1
		}
		L.Push(toLua(L, value))
		return 1
	}
}
