package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanatools/supertag/internal/types"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var fired int32
	d := NewDebouncer(50*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("fired %d times for one burst, want 1", n)
	}
}

func TestDebouncerStop(t *testing.T) {
	var fired int32
	d := NewDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	d.Trigger()
	d.Stop()
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("fired %d times after Stop", n)
	}
}

func TestDebouncerRefiresAfterQuiet(t *testing.T) {
	var fired int32
	d := NewDebouncer(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(100 * time.Millisecond)
	d.Trigger()
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 2 {
		t.Errorf("fired %d times for two separated triggers, want 2", n)
	}
}

type fakeIndexer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeIndexer) IndexLatest(ctx context.Context, exportDir string) (*types.IndexReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.IndexReport{Added: 1}, nil
}

func (f *fakeIndexer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeExport(t *testing.T, dir, name string) {
	t.Helper()
	content := `{"formatVersion":1,"docs":[]}`
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event")
		return Event{}
	}
}

func TestWatcherIndexesNewExport(t *testing.T) {
	dir := t.TempDir()
	ix := &fakeIndexer{}
	w := New(dir, ix, 50*time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeExport(t, dir, "ws@2026-01-01.json")
	ev := waitEvent(t, w)
	if ev.Err != nil {
		t.Fatalf("event error: %v", ev.Err)
	}
	if ev.Report == nil || ev.Report.Added != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	ix := &fakeIndexer{}
	w := New(dir, ix, 30*time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := ix.callCount(); n != 0 {
		t.Errorf("indexed %d times for a non-export file", n)
	}
}

func TestWatcherCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	ix := &fakeIndexer{}
	w := New(dir, ix, 100*time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		writeExport(t, dir, "ws@2026-01-01.json")
		time.Sleep(10 * time.Millisecond)
	}
	waitEvent(t, w)
	time.Sleep(300 * time.Millisecond)
	if n := ix.callCount(); n != 1 {
		t.Errorf("indexed %d times for one write burst, want 1", n)
	}
}

func TestWatcherEmitsErrors(t *testing.T) {
	dir := t.TempDir()
	ix := &fakeIndexer{err: errors.New("boom")}
	w := New(dir, ix, 30*time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeExport(t, dir, "ws@2026-01-01.json")
	ev := waitEvent(t, w)
	if ev.Err == nil {
		t.Errorf("event = %+v, want an error", ev)
	}
}

func TestWatcherQuietWhenExportVanishes(t *testing.T) {
	dir := t.TempDir()
	ix := &fakeIndexer{}
	w := New(dir, ix, 100*time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// The export disappears inside the debounce window; the fire finds no
	// matching file and must return to idle without an error event.
	writeExport(t, dir, "ws@2026-01-01.json")
	if err := os.Remove(filepath.Join(dir, "ws@2026-01-01.json")); err != nil {
		t.Fatalf("remove export: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
	if n := ix.callCount(); n != 0 {
		t.Errorf("indexer called %d times on an empty directory", n)
	}
}

func TestWatcherStopIsIdempotentFromAnyState(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, &fakeIndexer{}, 30*time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	writeExport(t, dir, "ws@2026-01-01.json")
	w.Stop()
	w.Stop()
}
