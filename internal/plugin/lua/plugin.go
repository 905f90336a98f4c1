// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package lua

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/framehud/framehud/internal/bus"
	"github.com/framehud/framehud/internal/plugin"
)

// manifestFile is the expected manifest name inside a plugin directory.
const manifestFile = "plugin.yaml"

// Hook names a script may define. Every hook is optional; an undefined hook
// is simply never called.
const (
	hookInit    = "on_init"
	hookUpdate  = "on_update"
	hookRender  = "on_render"
	hookKey     = "on_key"
	hookEvent   = "on_event"
	hookCleanup = "on_cleanup"
)

// Compile-time interface check.
var _ plugin.Plugin = (*Script)(nil)

// Script adapts a Lua source file to the plugin interface. Unlike a batch
// interpreter, the state persists across ticks: script-local variables are
// the plugin's working memory, and on_update runs against the same state
// every frame. The factory re-reads the source file on every construction,
// which is what makes reload pick up edits.
type Script struct {
	name  string
	state *lua.LState
	hooks map[string]lua.LValue
}

// Load reads a plugin directory and returns its definition, its instance
// config, and the entry path for file watching.
func Load(dir string) (plugin.Definition, plugin.Config, string, error) {
	data, err := os.ReadFile(filepath.Clean(filepath.Join(dir, manifestFile)))
	if err != nil {
		return plugin.Definition{}, plugin.Config{}, "", oops.In("lua").
			With("dir", dir).Hint("failed to read manifest").
			Wrapf(plugin.ErrConfiguration, "%v", err)
	}
	if err := ValidateSchema(data); err != nil {
		return plugin.Definition{}, plugin.Config{}, "", oops.In("lua").
			With("dir", dir).Hint(FormatSchemaError(err)).
			Wrap(plugin.ErrConfiguration)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return plugin.Definition{}, plugin.Config{}, "", err
	}

	entryPath := filepath.Clean(filepath.Join(dir, manifest.Entry))
	def := plugin.Definition{
		Meta: manifest.Metadata,
		New: func(ctx *plugin.Context, cfg plugin.Config) (plugin.Plugin, error) {
			return newScript(manifest.Name, entryPath, ctx, cfg)
		},
	}
	return def, manifest.Config(), entryPath, nil
}

// Discovered is one script plugin found by Discover.
type Discovered struct {
	Def   plugin.Definition
	Cfg   plugin.Config
	Dir   string
	Entry string
}

// Discover walks the immediate subdirectories of root and loads every one
// that contains a plugin.yaml. A broken plugin is skipped with its error
// recorded; the rest still load.
func Discover(root string) ([]Discovered, map[string]error, error) {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, oops.In("lua").With("dir", root).
			Hint("plugin directory unreadable").Wrap(err)
	}

	var found []Discovered
	broken := make(map[string]error)
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		dir := filepath.Join(root, de.Name())
		if _, err := os.Stat(filepath.Join(dir, manifestFile)); err != nil {
			continue // not a plugin directory
		}
		def, cfg, entry, err := Load(dir)
		if err != nil {
			broken[de.Name()] = err
			continue
		}
		found = append(found, Discovered{Def: def, Cfg: cfg, Dir: dir, Entry: entry})
	}
	return found, broken, nil
}

// newScript creates the sandboxed state, binds the hud.* module, runs the
// source top-level, and captures the hook functions it defined.
func newScript(name, entryPath string, ctx *plugin.Context, cfg plugin.Config) (*Script, error) {
	code, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, oops.In("lua").With("plugin", name).With("path", entryPath).
			Hint("failed to read entry file").Wrap(err)
	}

	L, err := NewStateFactory().NewState()
	if err != nil {
		return nil, oops.In("lua").With("plugin", name).Wrap(err)
	}
	registerHostFunctions(L, name, ctx, cfg)

	if err := L.DoString(string(code)); err != nil {
		L.Close()
		return nil, oops.In("lua").With("plugin", name).With("path", entryPath).
			Hint("script failed to load").Wrap(err)
	}

	s := &Script{
		name:  name,
		state: L,
		hooks: make(map[string]lua.LValue),
	}
	for _, hook := range []string{hookInit, hookUpdate, hookRender, hookKey, hookEvent, hookCleanup} {
		if fn := L.GetGlobal(hook); fn.Type() == lua.LTFunction {
			s.hooks[hook] = fn
		}
	}
	return s, nil
}

func (s *Script) call(hook string, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	fn, ok := s.hooks[hook]
	if !ok {
		return nil, nil
	}
	if err := s.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, args...); err != nil {
		return nil, oops.In("lua").With("plugin", s.name).With("hook", hook).Wrap(err)
	}
	rets := make([]lua.LValue, 0, nret)
	for i := nret; i > 0; i-- {
		rets = append(rets, s.state.Get(-i))
	}
	s.state.Pop(nret)
	return rets, nil
}

// Init runs on_init.
func (s *Script) Init() error {
	_, err := s.call(hookInit, 0)
	return err
}

// Update runs on_update(delta).
func (s *Script) Update(delta float64) error {
	_, err := s.call(hookUpdate, 0, lua.LNumber(delta))
	return err
}

// Render runs on_render(frame). The hook receives the frame as a string and
// may return a replacement; nil keeps the frame unchanged.
func (s *Script) Render(frame plugin.Frame) (plugin.Frame, error) {
	if _, ok := s.hooks[hookRender]; !ok {
		return frame, nil
	}
	rets, err := s.call(hookRender, 1, lua.LString(frame))
	if err != nil {
		return frame, err
	}
	if len(rets) == 1 {
		if out, ok := rets[0].(lua.LString); ok {
			return plugin.Frame(out), nil
		}
	}
	return frame, nil
}

// HandleKey runs on_key(key); a truthy return consumes the key.
func (s *Script) HandleKey(key plugin.Key) (bool, error) {
	if _, ok := s.hooks[hookKey]; !ok {
		return false, nil
	}
	rets, err := s.call(hookKey, 1, lua.LString(key))
	if err != nil {
		return false, err
	}
	return len(rets) == 1 && lua.LVAsBool(rets[0]), nil
}

// HandleEvent runs on_event(event) with a table carrying id, type, source,
// tick, and the converted payload.
func (s *Script) HandleEvent(event bus.Event) error {
	if _, ok := s.hooks[hookEvent]; !ok {
		return nil
	}
	t := s.state.NewTable()
	s.state.SetField(t, "id", lua.LString(event.ID.String()))
	s.state.SetField(t, "type", lua.LString(event.Type))
	s.state.SetField(t, "source", lua.LString(event.Source))
	s.state.SetField(t, "tick", lua.LNumber(event.Tick))
	s.state.SetField(t, "payload", toLua(s.state, event.Payload))
	_, err := s.call(hookEvent, 0, t)
	return err
}

// Cleanup runs on_cleanup and closes the state.
func (s *Script) Cleanup() error {
	_, err := s.call(hookCleanup, 0)
	s.state.Close()
	return err
}
