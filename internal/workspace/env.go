package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/tanatools/supertag/internal/indexer"
	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/snapshot"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

// Env is one opened workspace: the store and the services over it.
// Close it when done.
type Env struct {
	Workspace *types.Workspace
	Store     *sqlite.Store
	Schema    *schema.Service
	Indexer   *indexer.Indexer
}

// Open opens a workspace's store and initializes the schema.
func Open(ws *types.Workspace) (*Env, error) {
	store, err := sqlite.New(context.Background(), ws.DBPath)
	if err != nil {
		return nil, err
	}
	ix := indexer.New(store)
	if err := ix.InitializeSchema(); err != nil {
		store.Close()
		return nil, err
	}
	return &Env{
		Workspace: ws,
		Store:     store,
		Schema:    schema.NewService(store),
		Indexer:   ix,
	}, nil
}

// Close releases the store.
func (e *Env) Close() error { return e.Store.Close() }

// IndexLatest indexes the newest export in exportDir and regenerates the
// schema catalog cache. Satisfies the watcher's indexer contract.
func (e *Env) IndexLatest(ctx context.Context, exportDir string) (*types.IndexReport, error) {
	if exportDir == "" {
		exportDir = e.Workspace.ExportDir
	}
	if exportDir == "" {
		return nil, sterr.New(sterr.MissingRequired, "no export directory configured").
			WithSuggestion("set export_dir on the workspace or pass --export-dir")
	}
	file, err := snapshot.LatestExport(exportDir)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return nil, sterr.New(sterr.MissingRequired, "no exports in %s", exportDir).
			WithSuggestion("export a snapshot first; files look like Workspace@2026-01-31.json")
	}
	report, err := e.Indexer.IndexSnapshot(ctx, file)
	if err != nil {
		return nil, err
	}
	if e.Workspace.SchemaCachePath != "" {
		if err := e.Schema.WriteCatalogFile(ctx, e.Workspace.SchemaCachePath); err != nil {
			return report, err
		}
	}
	e.recordIndexRun(file, report)
	return report, nil
}

// IndexFile indexes one specific export and regenerates the catalog cache.
func (e *Env) IndexFile(ctx context.Context, path string) (*types.IndexReport, error) {
	report, err := e.Indexer.IndexSnapshot(ctx, path)
	if err != nil {
		return nil, err
	}
	if e.Workspace.SchemaCachePath != "" {
		if err := e.Schema.WriteCatalogFile(ctx, e.Workspace.SchemaCachePath); err != nil {
			return report, err
		}
	}
	e.recordIndexRun(path, report)
	return report, nil
}

// CleanupExports deletes all but the newest keep exports from the
// workspace's export directory and returns the removed filenames.
func (e *Env) CleanupExports(keep int, dryRun bool) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	dir := e.Workspace.ExportDir
	if dir == "" {
		return nil, sterr.New(sterr.MissingRequired, "no export directory configured")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var exports []string
	for _, entry := range entries {
		if entry.IsDir() || !snapshot.FilePattern.MatchString(entry.Name()) {
			continue
		}
		exports = append(exports, entry.Name())
	}
	sort.Strings(exports)
	if len(exports) <= keep {
		return nil, nil
	}
	stale := exports[:len(exports)-keep]
	if !dryRun {
		for _, name := range stale {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return stale, err
			}
		}
	}
	return stale, nil
}
