// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/framehud/framehud/internal/builtin"
	"github.com/framehud/framehud/internal/config"
	"github.com/framehud/framehud/internal/logging"
	"github.com/framehud/framehud/internal/observability"
	"github.com/framehud/framehud/internal/plugin"
	luaplugin "github.com/framehud/framehud/internal/plugin/lua"
	"github.com/framehud/framehud/pkg/errutil"
)

// NewRunCmd creates the run subcommand: the actual HUD host loop.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the HUD runtime",
		Long: `Start the runtime: register built-in plugins, discover script
plugins, resolve load order, and drive the tick loop until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runHost(cmd.Context(), cfg)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("log-format", defaults.LogFormat, "log format (json or text)")
	cmd.Flags().String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics-addr", defaults.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("plugins-dir", defaults.PluginsDir, "directory scanned for script plugins")
	cmd.Flags().Float64("tick-rate", defaults.TickRate, "target ticks per second")
	cmd.Flags().Duration("watch-interval", defaults.WatchInterval, "script source poll interval (0 = no hot reload)")

	return cmd
}

// runHost wires the runtime together and drives the tick loop.
func runHost(ctx context.Context, cfg config.Config) error {
	logging.SetDefault("framehud", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	slog.Info("starting runtime",
		"tick_rate", cfg.TickRate,
		"plugins_dir", cfg.PluginsDir,
		"metrics_addr", cfg.MetricsAddr,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server, if configured. Readiness flips once resolution
	// has run; the checker runs on the HTTP server's goroutines.
	var resolved atomic.Bool
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, resolved.Load)
		metrics = obsServer.Metrics()
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		defer stopObservability(obsServer)
	}

	reg := plugin.NewRegistry()
	var opts []plugin.Option
	if metrics != nil {
		opts = append(opts, plugin.WithMetrics(metrics))
	}
	sched := plugin.NewScheduler(reg, opts...)
	defer sched.Shutdown()

	if err := registerBuiltins(reg, sched, cfg); err != nil {
		return err
	}

	// Script plugins from disk, plus their reload wiring.
	watcher, dirs := registerScripts(reg, cfg)

	res := sched.Resolve()
	resolved.Store(true)
	slog.Info("plugins resolved",
		"load_order", res.LoadOrder,
		"failed", len(res.Failures),
	)

	if watcher != nil {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	interval := time.Duration(float64(time.Second) / cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var frame plugin.Frame
	last := time.Now()

	for {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			return nil
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down")
			return nil
		case name := <-watcherChanges(watcher):
			reloadScript(sched, name, dirs)
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			frame = sched.Tick(delta, frame[:0])
		}
	}
}

// registerBuiltins adds the compiled-in plugins, applying any config
// overrides by name.
func registerBuiltins(reg *plugin.Registry, sched *plugin.Scheduler, cfg config.Config) error {
	defs := []plugin.Definition{
		builtin.GPSSimDefinition(),
		builtin.CompassDefinition(),
		builtin.FPSCounterDefinition(),
		builtin.ControlDefinition(sched),
	}
	for _, def := range defs {
		instCfg := plugin.DefaultConfig()
		if entry, ok := cfg.Entry(def.Meta.Name); ok {
			instCfg = entry.Apply(instCfg)
		}
		if err := reg.Register(def, instCfg); err != nil {
			return err
		}
	}
	return nil
}

// registerScripts discovers script plugins, registers the healthy ones, and
// tracks their entry files for hot reload. Broken plugins are logged and
// skipped; they never block the rest.
func registerScripts(reg *plugin.Registry, cfg config.Config) (*plugin.Watcher, map[string]string) {
	dirs := make(map[string]string)
	if cfg.PluginsDir == "" {
		return nil, dirs
	}

	found, broken, err := luaplugin.Discover(cfg.PluginsDir)
	if err != nil {
		slog.Warn("script discovery skipped", "dir", cfg.PluginsDir, "error", err)
		return nil, dirs
	}
	for name, berr := range broken {
		errutil.LogError(slog.Default(), "script plugin skipped: "+name, berr)
	}

	var watcher *plugin.Watcher
	if cfg.WatchInterval > 0 {
		watcher = plugin.NewWatcher(cfg.WatchInterval)
	}

	for _, d := range found {
		instCfg := d.Cfg
		if entry, ok := cfg.Entry(d.Def.Meta.Name); ok {
			instCfg = entry.Apply(instCfg)
		}
		if err := reg.Register(d.Def, instCfg); err != nil {
			errutil.LogError(slog.Default(), "script plugin rejected", err)
			continue
		}
		dirs[d.Def.Meta.Name] = d.Dir
		if watcher != nil {
			if err := watcher.Track(d.Def.Meta.Name, d.Entry); err != nil {
				slog.Warn("watch disabled for plugin", "plugin", d.Def.Meta.Name, "error", err)
			}
		}
	}
	return watcher, dirs
}

// reloadScript rebuilds one script plugin from its directory.
func reloadScript(sched *plugin.Scheduler, name string, dirs map[string]string) {
	dir, ok := dirs[name]
	if !ok {
		slog.Warn("change reported for unknown plugin", "plugin", name)
		return
	}
	def, _, _, err := luaplugin.Load(dir)
	if err != nil {
		errutil.LogError(slog.Default(), "reload skipped: manifest broken", err)
		return
	}
	if err := sched.Reload(name, &def); err != nil {
		errutil.LogError(slog.Default(), "plugin reload failed", err)
		return
	}
}

// watcherChanges returns the watcher channel, or a nil channel (blocking
// forever) when watching is disabled.
func watcherChanges(w *plugin.Watcher) <-chan string {
	if w == nil {
		return nil
	}
	return w.Changes()
}

func stopObservability(s *observability.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels the run context when a background server
// fails, so the loop shuts down instead of running blind.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
