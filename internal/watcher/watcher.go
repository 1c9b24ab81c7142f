// Package watcher observes a snapshot export directory and triggers
// indexing when a new export lands. Bursts of filesystem events coalesce
// through a debounce timer; an indexing run that overlaps new events re-arms
// the timer so nothing is missed.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/snapshot"
	"github.com/tanatools/supertag/internal/types"
)

// DefaultDebounce is the quiet window before an index run starts.
const DefaultDebounce = 1000 * time.Millisecond

const pollInterval = 5 * time.Second

// Indexer is the slice of the ingestion engine the watcher drives.
type Indexer interface {
	IndexLatest(ctx context.Context, exportDir string) (*types.IndexReport, error)
}

// Event is one watcher notification.
type Event struct {
	Report *types.IndexReport // set on success
	Err    error              // set on failure
	File   string             // the export that triggered the run, if known
}

type state int

const (
	stateIdle state = iota
	stateArmed
	stateIndexing
)

// Watcher drives one workspace's export directory.
type Watcher struct {
	exportDir string
	indexer   Indexer
	debounce  time.Duration
	events    chan Event

	mu      sync.Mutex
	st      state
	rearmed bool

	fsw      *fsnotify.Watcher
	deb      *Debouncer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	polling  bool
	lastSeen string
}

// New builds a watcher over exportDir. A debounce <= 0 uses the default.
func New(exportDir string, indexer Indexer, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		exportDir: exportDir,
		indexer:   indexer,
		debounce:  debounce,
		events:    make(chan Event, 16),
	}
}

// Events is the stream of indexed/error notifications.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start begins watching. When fsnotify cannot watch the directory the
// watcher degrades to polling unless ST_WATCHER_FALLBACK is disabled.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.deb = NewDebouncer(w.debounce, func() { w.fire(ctx) })

	fallbackDisabled := os.Getenv("ST_WATCHER_FALLBACK") == "false" || os.Getenv("ST_WATCHER_FALLBACK") == "0"

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		err = fsw.Add(w.exportDir)
	}
	if err != nil {
		if fallbackDisabled {
			return err
		}
		debug.Logf("watcher: fsnotify unavailable (%v), polling every %v", err, pollInterval)
		w.polling = true
		if fsw != nil {
			fsw.Close()
		}
		w.wg.Add(1)
		go w.pollLoop(ctx)
		return nil
	}

	w.fsw = fsw
	w.wg.Add(1)
	go w.eventLoop(ctx)
	return nil
}

// Stop cancels the watcher from any state and waits for its goroutines.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.deb != nil {
		w.deb.Stop()
	}
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.wg.Wait()
	w.mu.Lock()
	w.st = stateIdle
	w.mu.Unlock()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !snapshot.FilePattern.MatchString(filepath.Base(ev.Name)) {
				continue
			}
			w.arm()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.Logf("watcher: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	w.lastSeen, _ = snapshot.LatestExport(w.exportDir)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latest, err := snapshot.LatestExport(w.exportDir)
			if err != nil || latest == w.lastSeen {
				continue
			}
			w.lastSeen = latest
			w.arm()
		}
	}
}

// arm moves idle → armed and re-arms the timer. During indexing it only
// records that a re-arm is due once the run finishes.
func (w *Watcher) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.st {
	case stateIndexing:
		w.rearmed = true
		return
	default:
		w.st = stateArmed
		w.deb.Trigger()
	}
}

// fire is the debounce callback: re-check an export exists, then run one
// index pass. A directory with no matching export yet is not an error; the
// watcher just returns to idle. Events that arrived meanwhile re-arm
// afterwards.
func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	if w.st != stateArmed {
		w.mu.Unlock()
		return
	}
	w.st = stateIndexing
	w.mu.Unlock()

	file, err := snapshot.LatestExport(w.exportDir)
	if err == nil && file != "" {
		var report *types.IndexReport
		report, err = w.indexer.IndexLatest(ctx, w.exportDir)
		if err == nil {
			w.emit(Event{Report: report, File: file})
		}
	}
	if err != nil && ctx.Err() == nil {
		w.emit(Event{Err: err, File: file})
	}

	w.mu.Lock()
	rearm := w.rearmed
	w.rearmed = false
	if rearm {
		w.st = stateArmed
	} else {
		w.st = stateIdle
	}
	w.mu.Unlock()
	if rearm && ctx.Err() == nil {
		w.deb.Trigger()
	}
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		debug.Logf("watcher: event channel full, dropping event")
	}
}
