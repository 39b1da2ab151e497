/*
 *
 * Copyright 2024 Relay authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package configfile keeps a service config parsed from a local file in sync
// with the file's contents.
package configfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/relayrpc/relay-go/relaylog"
	"github.com/relayrpc/relay-go/serviceconfig"
)

const (
	defaultPollInterval = 5 * time.Minute
	debounceDelay       = 100 * time.Millisecond
)

var (
	// For overriding from unit tests.
	readFileFunc = os.ReadFile
	logger       = relaylog.Component("configfile")
)

// Options configures a Watcher.
type Options struct {
	// Path is the file that holds the service config document.
	Path string
	// Registry holds the parsers the document is validated against.
	Registry *serviceconfig.Registry
	// ParseOptions is forwarded verbatim to every parser invocation.
	ParseOptions serviceconfig.ParseOptions
	// PollInterval is the amount of time the watcher waits before re-reading
	// the file even without a file system event.
	// Optional. If not set, a default value (5 minutes) will be used.
	PollInterval time.Duration
}

// NewWatcher returns a watcher that keeps the service config parsed from the
// file specified in the passed in options up to date. It starts a background
// goroutine which must be stopped with Close.
func NewWatcher(o Options) (*Watcher, error) {
	if o.Path == "" {
		return nil, fmt.Errorf("configfile: no config file path specified")
	}
	if o.Registry == nil {
		return nil, fmt.Errorf("configfile: no parser registry specified")
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaultPollInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("configfile: fsnotify.NewWatcher() failed: %v", err)
	}
	// Watch the directory rather than the file itself, so that atomic saves
	// (write to a temporary file, rename over the target) and recreation of
	// the file keep being observed.
	dir := filepath.Dir(o.Path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("configfile: watching %q failed: %v", dir, err)
	}

	w := &Watcher{
		opts:    o,
		fsw:     fsw,
		ready:   make(chan struct{}),
		updates: make(chan *serviceconfig.ServiceConfig, 1),
		done:    make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
	return w, nil
}

// Watcher reads, validates and re-reads one service config file, holding on
// to the most recent snapshot that parsed cleanly. A file revision that fails
// validation is logged and skipped; consumers keep seeing the previous
// config.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher

	cancel  context.CancelFunc
	done    chan struct{}
	updates chan *serviceconfig.ServiceConfig

	mu      sync.Mutex
	current *serviceconfig.ServiceConfig
	ready   chan struct{} // closed when current is first set
}

// run is a long running goroutine which re-reads the config file when the
// file system reports a change, with a polling fallback for file systems
// where notifications are unreliable. Bursts of events for one save are
// coalesced through a short debounce timer.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	w.reload()

	filename := filepath.Base(w.opts.Path)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	events, errs := w.fsw.Events, w.fsw.Errors
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) != filename {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			debounce = time.After(debounceDelay)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warningf("configfile: watch error on %q: %v", w.opts.Path, err)
		case <-debounce:
			debounce = nil
			w.reload()
		case <-ticker.C:
			w.reload()
		}
	}
}

// reload reads and parses the file once, publishing the result if it differs
// from the current snapshot.
func (w *Watcher) reload() {
	data, err := readFileFunc(w.opts.Path)
	if err != nil {
		logger.Warningf("configfile: reading %q failed: %v", w.opts.Path, err)
		return
	}
	sc, err := serviceconfig.Parse(w.opts.Registry, string(data), w.opts.ParseOptions)
	if err != nil {
		// Keep serving the previous snapshot until a revision parses again.
		logger.Warningf("configfile: parsing %q failed: %v", w.opts.Path, err)
		return
	}

	w.mu.Lock()
	if w.current.Equal(sc) {
		w.mu.Unlock()
		return
	}
	first := w.current == nil
	w.current = sc
	w.mu.Unlock()
	if first {
		close(w.ready)
	}

	// Conflate undelivered snapshots; a slow consumer only sees the newest.
	select {
	case <-w.updates:
	default:
	}
	w.updates <- sc
}

// Config returns the current service config, blocking until the first
// snapshot parses if none has yet.
func (w *Watcher) Config(ctx context.Context) (*serviceconfig.ServiceConfig, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.ready:
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, nil
}

// Latest returns the current service config without blocking, or nil if no
// snapshot has parsed yet.
func (w *Watcher) Latest() *serviceconfig.ServiceConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Updates returns a channel carrying config snapshots as the file changes.
// The channel conflates: if several revisions land before the consumer reads,
// only the newest is delivered. Rewrites that do not change the document are
// suppressed.
func (w *Watcher) Updates() <-chan *serviceconfig.ServiceConfig {
	return w.updates
}

// Close stops the background goroutine and releases the file system watch.
// It does not return until the goroutine has exited.
func (w *Watcher) Close() {
	w.cancel()
	w.fsw.Close()
	<-w.done
}
