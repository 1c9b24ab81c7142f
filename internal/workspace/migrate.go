package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tanatools/supertag/internal/types"
)

// MigrateLegacy copies a pre-registry single database into the registry
// layout and registers it under alias. The copy is one-way; the old file is
// preserved so a rollback is just deleting the new workspace.
func MigrateLegacy(reg *Registry, alias string) (*types.Workspace, error) {
	legacy := LegacyDBPath()
	if _, err := os.Stat(legacy); err != nil {
		return nil, fmt.Errorf("no legacy database at %s: %w", legacy, err)
	}
	if alias == "" {
		alias = "default"
	}
	ws := &types.Workspace{Alias: alias}
	if err := reg.Add(ws); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(ws.DBPath), 0o755); err != nil {
		return nil, err
	}
	if err := copyFile(legacy, ws.DBPath); err != nil {
		return nil, err
	}
	if err := reg.Save(); err != nil {
		return nil, err
	}
	return ws, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
