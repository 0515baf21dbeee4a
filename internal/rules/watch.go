package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"toneroute/internal/logging"
)

// DefaultDebounce is how long a rule file must stay quiet before it is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// WatchStats tracks watcher activity.
type WatchStats struct {
	Events    int       `json:"events"`
	Reloads   int       `json:"reloads"`
	Rejected  int       `json:"rejected"`
	Errors    int       `json:"errors"`
	LastEvent time.Time `json:"last_event"`
}

// Watcher reloads a rule table file whenever it changes on disk.
// The parent directory is watched so editors that save via rename are seen.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	pending  time.Time
	onLoad   func(*Table)
	onReject func(error)
	stats    WatchStats
}

// NewWatcher creates a watcher for path. onLoad receives every table that
// loads cleanly; onReject receives read, parse and validation failures.
// A debounce <= 0 means DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, onLoad func(*Table), onReject func(error)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rule table path %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onLoad == nil {
		onLoad = func(*Table) {}
	}
	if onReject == nil {
		onReject = func(error) {}
	}
	return &Watcher{
		watcher:  fw,
		path:     abs,
		debounce: debounce,
		onLoad:   onLoad,
		onReject: onReject,
	}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Run processes events until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	logging.Rules("watching rule table %s", w.path)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Rules("stopped watching %s", w.path)
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.RulesWarn("rule watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			if w.settled() {
				w.reload()
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEvent = time.Now()
	w.pending = w.stats.LastEvent
	w.mu.Unlock()
}

// settled reports whether a pending change has been quiet for the debounce window.
func (w *Watcher) settled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	return true
}

func (w *Watcher) reload() {
	t, err := LoadFile(w.path)
	w.mu.Lock()
	if err != nil {
		w.stats.Rejected++
	} else {
		w.stats.Reloads++
	}
	w.mu.Unlock()

	if err != nil {
		w.onReject(err)
		return
	}
	w.onLoad(t)
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatchStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
