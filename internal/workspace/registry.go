// Package workspace manages the multi-workspace registry, per-workspace
// resolution, and batch fan-out across workspaces.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
)

// RegistryFile is the registry filename under the config directory.
const RegistryFile = "workspaces.yaml"

// Registry is the persisted set of known workspaces.
type Registry struct {
	path       string
	Workspaces map[string]*types.Workspace `yaml:"workspaces"`
	Default    string                      `yaml:"default,omitempty"`
}

// DefaultRegistryPath is where the registry lives unless overridden.
func DefaultRegistryPath() string {
	return filepath.Join(config.Dir(), RegistryFile)
}

// LoadRegistry reads the registry; a missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		path = DefaultRegistryPath()
	}
	reg := &Registry{path: path, Workspaces: map[string]*types.Workspace{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return nil, sterr.Wrap(sterr.ConfigNotFound, err, "read workspace registry")
	}
	if err := yaml.Unmarshal(data, reg); err != nil {
		return nil, sterr.Wrap(sterr.ConfigInvalid, err, "parse workspace registry %s", path)
	}
	if reg.Workspaces == nil {
		reg.Workspaces = map[string]*types.Workspace{}
	}
	for alias, ws := range reg.Workspaces {
		ws.Alias = alias
		ws.Default = alias == reg.Default
	}
	return reg, nil
}

// Save writes the registry atomically (write temp, then rename).
func (r *Registry) Save() error {
	path := r.path
	if path == "" {
		path = DefaultRegistryPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal workspace registry: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write workspace registry: %w", err)
	}
	return os.Rename(tmp, path)
}

// Get returns a workspace by alias.
func (r *Registry) Get(alias string) (*types.Workspace, error) {
	ws, ok := r.Workspaces[alias]
	if !ok {
		return nil, sterr.New(sterr.WorkspaceNotFound, "workspace %q not found", alias).
			WithSuggestion("run `st workspace list` to see configured workspaces")
	}
	return ws, nil
}

// Add registers a new workspace, filling derived paths for any left empty.
func (r *Registry) Add(ws *types.Workspace) error {
	if ws.Alias == "" {
		return sterr.New(sterr.MissingRequired, "workspace alias is required")
	}
	if _, exists := r.Workspaces[ws.Alias]; exists {
		return sterr.New(sterr.InvalidParameter, "workspace %q already exists", ws.Alias)
	}
	fillDefaults(ws)
	ws.Enabled = true
	r.Workspaces[ws.Alias] = ws
	if len(r.Workspaces) == 1 {
		r.Default = ws.Alias
		ws.Default = true
	}
	return nil
}

// Update replaces a workspace's settings, keeping derived paths consistent.
func (r *Registry) Update(ws *types.Workspace) error {
	if _, err := r.Get(ws.Alias); err != nil {
		return err
	}
	fillDefaults(ws)
	ws.Default = ws.Alias == r.Default
	r.Workspaces[ws.Alias] = ws
	return nil
}

// Remove deletes a workspace from the registry. On-disk data stays.
func (r *Registry) Remove(alias string) error {
	if _, err := r.Get(alias); err != nil {
		return err
	}
	delete(r.Workspaces, alias)
	if r.Default == alias {
		r.Default = ""
	}
	return nil
}

// SetDefault marks one workspace as the default.
func (r *Registry) SetDefault(alias string) error {
	if _, err := r.Get(alias); err != nil {
		return err
	}
	r.Default = alias
	for a, ws := range r.Workspaces {
		ws.Default = a == alias
	}
	return nil
}

// SetEnabled toggles a workspace in or out of batch operations.
func (r *Registry) SetEnabled(alias string, enabled bool) error {
	ws, err := r.Get(alias)
	if err != nil {
		return err
	}
	ws.Enabled = enabled
	return nil
}

// List returns workspaces ordered by alias.
func (r *Registry) List() []*types.Workspace {
	out := make([]*types.Workspace, 0, len(r.Workspaces))
	for _, ws := range r.Workspaces {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Enabled returns enabled workspaces ordered by alias.
func (r *Registry) Enabled() []*types.Workspace {
	var out []*types.Workspace
	for _, ws := range r.List() {
		if ws.Enabled {
			out = append(out, ws)
		}
	}
	return out
}

// DataDir is the per-workspace state directory.
func DataDir(alias string) string {
	return filepath.Join(config.Dir(), "workspaces", alias)
}

func fillDefaults(ws *types.Workspace) {
	dir := DataDir(ws.Alias)
	if ws.DBPath == "" {
		ws.DBPath = filepath.Join(dir, "supertag.db")
	}
	if ws.SchemaCachePath == "" {
		ws.SchemaCachePath = filepath.Join(dir, "schema.json")
	}
}
