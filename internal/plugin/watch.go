// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const defaultWatchInterval = 500 * time.Millisecond

// Watcher polls tracked plugin source files for modification and reports
// which plugins changed. Hosts drain Changes between ticks and trigger
// Scheduler.Reload for each name received.
//
// Polling mtimes is deliberate: it works on every platform and every
// filesystem the runtime targets, and plugin sources change at human speed.
type Watcher struct {
	interval time.Duration
	changes  chan string

	mu      sync.Mutex
	entries map[string]*watchEntry

	stop chan struct{}
	done chan struct{}
}

type watchEntry struct {
	path  string
	mtime time.Time
	size  int64
}

// NewWatcher creates a watcher with the given poll interval; zero means the
// default (500ms).
func NewWatcher(interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Watcher{
		interval: interval,
		changes:  make(chan string, 16),
		entries:  make(map[string]*watchEntry),
	}
}

// Track starts watching path on behalf of the named plugin. The current
// mtime is taken as the baseline, so only later writes report as changes.
func (w *Watcher) Track(name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return oops.In("watcher").With("plugin", name).With("path", path).Wrap(err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[name] = &watchEntry{path: path, mtime: info.ModTime(), size: info.Size()}
	return nil
}

// Untrack stops watching the named plugin.
func (w *Watcher) Untrack(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, name)
}

// Changes returns the channel of plugin names whose source changed. If the
// host falls behind, change notifications for a plugin coalesce rather than
// queue without bound.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Start begins polling in a background goroutine until Stop is called or the
// context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}()
}

// Stop halts polling and waits for the poll goroutine to exit.
func (w *Watcher) Stop() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
	w.stop = nil
}

func (w *Watcher) poll(ctx context.Context) {
	w.mu.Lock()
	type probe struct {
		name  string
		entry *watchEntry
	}
	probes := make([]probe, 0, len(w.entries))
	for name, entry := range w.entries {
		probes = append(probes, probe{name: name, entry: entry})
	}
	w.mu.Unlock()

	for _, p := range probes {
		info, err := statRetry(ctx, p.entry.path)
		if err != nil {
			// Editors save via rename; a path can briefly vanish. Persistent
			// absence is reported once the retries are exhausted.
			slog.Warn("plugin source unreadable", "plugin", p.name, "path", p.entry.path, "error", err)
			continue
		}
		if info.ModTime().Equal(p.entry.mtime) && info.Size() == p.entry.size {
			continue
		}
		p.entry.mtime = info.ModTime()
		p.entry.size = info.Size()
		select {
		case w.changes <- p.name:
		default:
			slog.Warn("change notification dropped, host not draining", "plugin", p.name)
		}
	}
}

// statRetry stats a path, retrying with fibonacci backoff to ride out the
// window where an atomic-rename save has unlinked the old file.
func statRetry(ctx context.Context, path string) (os.FileInfo, error) {
	var info os.FileInfo
	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		var err error
		info, err = os.Stat(path)
		if os.IsNotExist(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return info, err
}
