// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framehud/framehud/internal/config"
	"github.com/framehud/framehud/internal/plugin"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	subcommands := []string{"run", "plugins", "schema"}
	for _, sub := range subcommands {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "config flag",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "config flag with equals",
			args:     []string{"--config=/etc/framehud.yaml", "--help"},
			wantFlag: "/etc/framehud.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset global
			configFile = ""

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_LongDescription(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "framehud", cmd.Use)
	assert.Contains(t, cmd.Long, "data bus", "Long description should mention the data bus")
	assert.Contains(t, cmd.Long, "reload", "Long description should mention reload")
}

func TestRootCommand_NoArgs(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	// Root command with no args should show help (no error)
	require.NoError(t, cmd.Execute())
}

func TestUnknownCommand(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"nonexistent"})

	err := cmd.Execute()
	require.Error(t, err, "Expected error for unknown command")
}

func TestInvalidFlag(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--invalid-flag"})

	err := cmd.Execute()
	require.Error(t, err, "Expected error for invalid flag")
}

func TestSchemaCommand_WritesToStdout(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"schema", "--out", "-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"$schema"`)
	assert.Contains(t, buf.String(), `"entry"`)
}

func TestSchemaCommand_WritesToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schemas", "plugin.schema.json")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"schema", "--out", out})

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(out) //nolint:gosec // test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name"`)
}

func TestPluginsCommand_ListsDiscovered(t *testing.T) {
	root := t.TempDir()
	pluginDir := filepath.Join(root, "plugins", "clock")
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"),
		[]byte("name: clock\nversion: 1.0.0\nentry: main.lua\nprovides:\n  - hud.uptime\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "main.lua"), []byte("-- ok\n"), 0o600))

	cfgPath := filepath.Join(root, "framehud.yaml")
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte("plugins-dir: "+filepath.Join(root, "plugins")+"\n"), 0o600))

	configFile = cfgPath
	defer func() { configFile = config.DefaultPath }()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"plugins", "--config", cfgPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "clock")
	assert.Contains(t, output, "1.0.0")
	assert.Contains(t, output, "hud.uptime")
}

func TestRegisterBuiltins_AppliesOverrides(t *testing.T) {
	reg := plugin.NewRegistry()
	sched := plugin.NewScheduler(reg)

	disabled := false
	cfg := config.Default()
	cfg.Plugins = []config.PluginEntry{{Name: "compass", Enabled: &disabled}}

	require.NoError(t, registerBuiltins(reg, sched, cfg))

	names := reg.Names()
	assert.Contains(t, names, "gpssim")
	assert.Contains(t, names, "compass")
	assert.Contains(t, names, "fpscounter")
	assert.Contains(t, names, "control")

	sched.Resolve()
	assert.False(t, sched.Enabled("compass"), "config override disables compass")
	assert.True(t, sched.Enabled("gpssim"))
}

func TestRegisterScripts_TracksForReload(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "clock")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"),
		[]byte("name: clock\nversion: 1.0.0\nentry: main.lua\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte("-- ok\n"), 0o600))

	cfg := config.Default()
	cfg.PluginsDir = root

	reg := plugin.NewRegistry()
	watcher, dirs := registerScripts(reg, cfg)
	require.NotNil(t, watcher, "watcher built when watch-interval > 0")
	defer watcher.Stop()

	assert.Equal(t, dir, dirs["clock"])
	assert.Contains(t, reg.Names(), "clock")
}

func TestRegisterScripts_DisabledWithoutDir(t *testing.T) {
	cfg := config.Default()
	cfg.PluginsDir = ""

	watcher, dirs := registerScripts(plugin.NewRegistry(), cfg)
	assert.Nil(t, watcher)
	assert.Empty(t, dirs)
}
