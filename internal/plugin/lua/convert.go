// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a Go value from the data bus or an event payload into a
// Lua value. Maps and slices convert recursively; unknown types degrade to
// their string form rather than erroring mid-frame.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// fromLua converts a Lua value into the Go shape stored on the data bus.
// Tables become map[string]any, or []any when the keys are a 1..n sequence.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		return tableToGo(val)
	default:
		return val.String()
	}
}

func tableToGo(t *lua.LTable) any {
	maxn := t.MaxN()
	if maxn > 0 {
		out := make([]any, 0, maxn)
		for i := 1; i <= maxn; i++ {
			out = append(out, fromLua(t.RawGetInt(i)))
		}
		return out
	}
	out := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		out[k.String()] = fromLua(v)
	})
	return out
}
