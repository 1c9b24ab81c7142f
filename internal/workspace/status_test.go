package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/tanatools/supertag/internal/types"
)

func statusEnv(t *testing.T) *Env {
	t.Helper()
	return &Env{Workspace: &types.Workspace{
		Alias:  "test",
		DBPath: filepath.Join(t.TempDir(), "supertag.db"),
	}}
}

func TestRecordIndexRun(t *testing.T) {
	e := statusEnv(t)
	e.recordIndexRun("ws@2026-01-01.json", &types.IndexReport{
		Added: 10, Modified: 2, Deleted: 1, NodesTotal: 300,
	})

	data, err := os.ReadFile(e.StatusPath())
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if got := gjson.GetBytes(data, "last_export").String(); got != "ws@2026-01-01.json" {
		t.Errorf("last_export = %q", got)
	}
	if got := gjson.GetBytes(data, "last_run.added").Int(); got != 10 {
		t.Errorf("last_run.added = %d", got)
	}
	if got := gjson.GetBytes(data, "total_nodes").Int(); got != 300 {
		t.Errorf("total_nodes = %d", got)
	}
	if e.LastIndexed().IsZero() {
		t.Error("LastIndexed is zero after a recorded run")
	}
}

func TestRecordIndexRunPreservesForeignKeys(t *testing.T) {
	e := statusEnv(t)
	if err := os.WriteFile(e.StatusPath(), []byte(`{"dashboard_note":"keep me"}`), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	e.recordIndexRun("ws@2026-02-02.json", &types.IndexReport{Added: 1})

	data, err := os.ReadFile(e.StatusPath())
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if got := gjson.GetBytes(data, "dashboard_note").String(); got != "keep me" {
		t.Errorf("foreign key lost, dashboard_note = %q", got)
	}
	if got := gjson.GetBytes(data, "last_export").String(); got != "ws@2026-02-02.json" {
		t.Errorf("last_export = %q", got)
	}
}

func TestLastIndexedNeverIndexed(t *testing.T) {
	e := statusEnv(t)
	if !e.LastIndexed().IsZero() {
		t.Error("LastIndexed nonzero without a sidecar")
	}
}

func TestCleanupExports(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"ws@2026-01-01.json", "ws@2026-01-02.json",
		"ws@2026-01-03.json", "ws@2026-01-04.json",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := &Env{Workspace: &types.Workspace{Alias: "test", ExportDir: dir}}

	// Dry run reports the two oldest without removing anything.
	stale, err := e.CleanupExports(2, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(stale) != 2 || stale[0] != "ws@2026-01-01.json" || stale[1] != "ws@2026-01-02.json" {
		t.Fatalf("stale = %v", stale)
	}
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("dry run removed %s", name)
		}
	}

	if _, err := e.CleanupExports(2, false); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	for _, name := range stale {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still present", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-export file removed")
	}

	// Nothing left to remove.
	stale, err = e.CleanupExports(2, false)
	if err != nil || stale != nil {
		t.Errorf("second cleanup = %v, %v", stale, err)
	}
}

func TestIndexLatestNoExportDir(t *testing.T) {
	ws := &types.Workspace{Alias: "test", DBPath: filepath.Join(t.TempDir(), "supertag.db")}
	env, err := Open(ws)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer env.Close()

	if _, err := env.IndexLatest(context.Background(), ""); err == nil {
		t.Error("indexed with no export directory configured")
	}
	if _, err := env.IndexLatest(context.Background(), t.TempDir()); err == nil {
		t.Error("indexed an empty export directory")
	}
}
