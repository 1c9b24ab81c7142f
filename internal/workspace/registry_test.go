package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	t.Setenv("ST_HOME", t.TempDir())
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "workspaces.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	return reg
}

func TestRegistryAddAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ws := &types.Workspace{Alias: "personal", ExportDir: "/exports"}
	if err := reg.Add(ws); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ws.DBPath == "" || ws.SchemaCachePath == "" {
		t.Errorf("derived paths not filled: %+v", ws)
	}
	if !ws.Enabled || !ws.Default {
		t.Errorf("first workspace = %+v, want enabled default", ws)
	}

	got, err := reg.Get("personal")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ExportDir != "/exports" {
		t.Errorf("workspace = %+v", got)
	}
}

func TestRegistryAddRejectsDuplicatesAndBlank(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Add(&types.Workspace{Alias: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Add(&types.Workspace{Alias: "a"}); !sterr.IsKind(err, sterr.InvalidParameter) {
		t.Errorf("duplicate kind = %v", sterr.KindOf(err))
	}
	if err := reg.Add(&types.Workspace{}); !sterr.IsKind(err, sterr.MissingRequired) {
		t.Errorf("blank alias kind = %v", sterr.KindOf(err))
	}
}

func TestRegistrySecondAddIsNotDefault(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Add(&types.Workspace{Alias: "first"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	second := &types.Workspace{Alias: "second"}
	if err := reg.Add(second); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if second.Default || reg.Default != "first" {
		t.Errorf("default = %q, second.Default = %v", reg.Default, second.Default)
	}
}

func TestRegistrySaveAndReload(t *testing.T) {
	t.Setenv("ST_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "workspaces.yaml")
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if err := reg.Add(&types.Workspace{Alias: "personal", ExportDir: "/exports", Token: "tok"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Add(&types.Workspace{Alias: "work"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.SetEnabled("work", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := reg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Workspaces) != 2 || reloaded.Default != "personal" {
		t.Fatalf("reloaded = %+v", reloaded)
	}
	ws, err := reloaded.Get("personal")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ws.ExportDir != "/exports" || ws.Token != "tok" || !ws.Default || !ws.Enabled {
		t.Errorf("personal = %+v", ws)
	}
	work, _ := reloaded.Get("work")
	if work.Enabled {
		t.Error("disabled flag lost across reload")
	}
}

func TestRegistryLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.yaml")
	if err := os.WriteFile(path, []byte("{workspaces: ["), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRegistry(path); !sterr.IsKind(err, sterr.ConfigInvalid) {
		t.Errorf("kind = %v, want ConfigInvalid", sterr.KindOf(err))
	}
}

func TestRegistryRemoveClearsDefault(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Add(&types.Workspace{Alias: "only"})
	if err := reg.Remove("only"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if reg.Default != "" || len(reg.Workspaces) != 0 {
		t.Errorf("registry = %+v", reg)
	}
	if err := reg.Remove("only"); !sterr.IsKind(err, sterr.WorkspaceNotFound) {
		t.Errorf("kind = %v", sterr.KindOf(err))
	}
}

func TestRegistrySetDefault(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Add(&types.Workspace{Alias: "a"})
	reg.Add(&types.Workspace{Alias: "b"})
	if err := reg.SetDefault("b"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	a, _ := reg.Get("a")
	b, _ := reg.Get("b")
	if a.Default || !b.Default {
		t.Errorf("defaults: a=%v b=%v", a.Default, b.Default)
	}
}

func TestRegistryListAndEnabled(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Add(&types.Workspace{Alias: "zeta"})
	reg.Add(&types.Workspace{Alias: "alpha"})
	reg.Add(&types.Workspace{Alias: "mid"})
	reg.SetEnabled("mid", false)

	list := reg.List()
	if len(list) != 3 || list[0].Alias != "alpha" || list[2].Alias != "zeta" {
		t.Errorf("list order = %+v", list)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 {
		t.Errorf("enabled = %+v", enabled)
	}
}

func TestResolvePriority(t *testing.T) {
	t.Setenv("ST_HOME", t.TempDir())
	reg := &Registry{Workspaces: map[string]*types.Workspace{}}
	reg.Add(&types.Workspace{Alias: "def"})
	reg.Add(&types.Workspace{Alias: "other"})

	// Explicit path wins over everything.
	ws, err := Resolve(reg, Selector{DBPath: "/tmp/x.db", Alias: "other"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.DBPath != "/tmp/x.db" {
		t.Errorf("ws = %+v", ws)
	}

	// Alias beats the default.
	ws, err = Resolve(reg, Selector{Alias: "other"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.Alias != "other" {
		t.Errorf("ws = %+v", ws)
	}

	// No selector falls back to the registry default.
	ws, err = Resolve(reg, Selector{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.Alias != "def" {
		t.Errorf("ws = %+v", ws)
	}
}

func TestResolveExportDirOverride(t *testing.T) {
	t.Setenv("ST_HOME", t.TempDir())
	reg := &Registry{Workspaces: map[string]*types.Workspace{}}
	reg.Add(&types.Workspace{Alias: "def", ExportDir: "/original"})

	ws, err := Resolve(reg, Selector{ExportDir: "/override"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.ExportDir != "/override" {
		t.Errorf("export dir = %q", ws.ExportDir)
	}
	// The registry entry itself is untouched.
	orig, _ := reg.Get("def")
	if orig.ExportDir != "/original" {
		t.Errorf("registry entry mutated: %q", orig.ExportDir)
	}
}

func TestResolveLegacyFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ST_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "supertag.db"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write legacy db: %v", err)
	}
	reg := &Registry{Workspaces: map[string]*types.Workspace{}}

	ws, err := Resolve(reg, Selector{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.Alias != "default" || ws.DBPath != LegacyDBPath() {
		t.Errorf("ws = %+v", ws)
	}
}

func TestResolveNothingConfigured(t *testing.T) {
	t.Setenv("ST_HOME", t.TempDir())
	reg := &Registry{Workspaces: map[string]*types.Workspace{}}
	_, err := Resolve(reg, Selector{})
	if !sterr.IsKind(err, sterr.WorkspaceNotFound) {
		t.Errorf("kind = %v, want WorkspaceNotFound", sterr.KindOf(err))
	}
}

func TestMigrateLegacy(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ST_HOME", home)
	legacyContent := []byte("legacy-db-bytes")
	if err := os.WriteFile(filepath.Join(home, "supertag.db"), legacyContent, 0o644); err != nil {
		t.Fatalf("write legacy db: %v", err)
	}
	reg, err := LoadRegistry(filepath.Join(home, "workspaces.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	ws, err := MigrateLegacy(reg, "")
	if err != nil {
		t.Fatalf("MigrateLegacy: %v", err)
	}
	if ws.Alias != "default" {
		t.Errorf("alias = %q", ws.Alias)
	}
	copied, err := os.ReadFile(ws.DBPath)
	if err != nil || string(copied) != string(legacyContent) {
		t.Errorf("copy = %q, %v", copied, err)
	}
	// The old file stays for rollback.
	if _, err := os.Stat(LegacyDBPath()); err != nil {
		t.Errorf("legacy file gone: %v", err)
	}
	reloaded, err := LoadRegistry(filepath.Join(home, "workspaces.yaml"))
	if err != nil || len(reloaded.Workspaces) != 1 {
		t.Errorf("registry not persisted: %+v, %v", reloaded, err)
	}
}

func TestMigrateLegacyMissing(t *testing.T) {
	t.Setenv("ST_HOME", t.TempDir())
	reg := &Registry{Workspaces: map[string]*types.Workspace{}}
	if _, err := MigrateLegacy(reg, "x"); err == nil {
		t.Error("migrated without a legacy database")
	}
}

func TestRunBatchContinuesOnError(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ST_HOME", home)
	reg := &Registry{path: filepath.Join(home, "workspaces.yaml"), Workspaces: map[string]*types.Workspace{}}
	for _, alias := range []string{"a", "b", "c"} {
		if err := reg.Add(&types.Workspace{Alias: alias}); err != nil {
			t.Fatalf("Add(%s): %v", alias, err)
		}
	}

	report, err := RunBatch(context.Background(), reg, nil, func(ctx context.Context, env *Env) (interface{}, error) {
		if env.Workspace.Alias == "b" {
			return nil, errors.New("boom")
		}
		return env.Workspace.Alias, nil
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	// Outcomes are sorted by alias regardless of completion order.
	for i, want := range []string{"a", "b", "c"} {
		if report.Outcomes[i].Alias != want {
			t.Errorf("outcome %d = %s, want %s", i, report.Outcomes[i].Alias, want)
		}
	}
	if report.Outcomes[1].Error == "" {
		t.Error("failed outcome carries no error text")
	}
	if report.Outcomes[0].Value != "a" {
		t.Errorf("outcome value = %v", report.Outcomes[0].Value)
	}
}

func TestRunBatchExplicitAliases(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ST_HOME", home)
	reg := &Registry{Workspaces: map[string]*types.Workspace{}}
	reg.Add(&types.Workspace{Alias: "a"})
	reg.Add(&types.Workspace{Alias: "b"})

	report, err := RunBatch(context.Background(), reg, []string{"b"}, func(ctx context.Context, env *Env) (interface{}, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].Alias != "b" {
		t.Errorf("outcomes = %+v", report.Outcomes)
	}
	if _, err := RunBatch(context.Background(), reg, []string{"ghost"}, func(ctx context.Context, env *Env) (interface{}, error) {
		return nil, nil
	}); !sterr.IsKind(err, sterr.WorkspaceNotFound) {
		t.Errorf("kind = %v", sterr.KindOf(err))
	}
}
