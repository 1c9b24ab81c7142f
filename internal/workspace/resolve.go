package workspace

import (
	"os"
	"path/filepath"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
)

// Selector carries the per-invocation workspace overrides, usually from
// flags or environment.
type Selector struct {
	DBPath    string // explicit store path, highest priority
	Alias     string // explicit workspace alias
	ExportDir string // explicit export dir, applied on top of the resolution
}

// Resolve picks the workspace an operation runs against. Priority: explicit
// path > alias > registry default > legacy single-db layout.
func Resolve(reg *Registry, sel Selector) (*types.Workspace, error) {
	if sel.DBPath != "" {
		ws := &types.Workspace{
			Alias:           "(path)",
			DBPath:          sel.DBPath,
			SchemaCachePath: sel.DBPath + ".schema.json",
			ExportDir:       sel.ExportDir,
			Enabled:         true,
		}
		return ws, nil
	}
	if sel.Alias != "" {
		ws, err := reg.Get(sel.Alias)
		if err != nil {
			return nil, err
		}
		return applyOverrides(ws, sel), nil
	}
	if reg.Default != "" {
		ws, err := reg.Get(reg.Default)
		if err != nil {
			return nil, err
		}
		return applyOverrides(ws, sel), nil
	}

	// Legacy single-database layout from before the registry existed.
	legacy := LegacyDBPath()
	if _, err := os.Stat(legacy); err == nil {
		ws := &types.Workspace{
			Alias:           "default",
			DBPath:          legacy,
			SchemaCachePath: filepath.Join(filepath.Dir(legacy), "schema.json"),
			ExportDir:       sel.ExportDir,
			Enabled:         true,
		}
		return ws, nil
	}
	return nil, sterr.New(sterr.WorkspaceNotFound, "no workspace configured").
		WithSuggestion("run `st workspace add` to register one, or pass --db")
}

// LegacyDBPath is the pre-registry single-database location.
func LegacyDBPath() string {
	return filepath.Join(config.Dir(), "supertag.db")
}

func applyOverrides(ws *types.Workspace, sel Selector) *types.Workspace {
	if sel.ExportDir == "" {
		return ws
	}
	out := *ws
	out.ExportDir = sel.ExportDir
	return &out
}
