package workspace

import (
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/types"
)

// StatusPath is the sidecar status file next to the workspace database.
// External tools (dashboards, shell prompts) read it without opening
// SQLite; unknown keys they write are preserved across updates.
func (e *Env) StatusPath() string {
	return e.Workspace.DBPath + ".status.json"
}

// recordIndexRun patches the status sidecar after a successful index run.
// Best effort: a failure here never fails the run itself.
func (e *Env) recordIndexRun(file string, report *types.IndexReport) {
	path := e.StatusPath()
	data, err := os.ReadFile(path)
	if err != nil {
		data = []byte("{}")
	}
	for key, value := range map[string]interface{}{
		"last_export":       file,
		"last_indexed_at":   time.Now().UTC().Format(time.RFC3339),
		"last_run.added":    report.Added,
		"last_run.modified": report.Modified,
		"last_run.deleted":  report.Deleted,
		"total_nodes":       report.NodesTotal,
	} {
		data, err = sjson.SetBytes(data, key, value)
		if err != nil {
			debug.Logf("status: set %s: %v", key, err)
			return
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		debug.Logf("status: write %s: %v", path, err)
	}
}

// LastIndexed reads the last index time from the status sidecar, zero when
// the workspace was never indexed.
func (e *Env) LastIndexed() time.Time {
	data, err := os.ReadFile(e.StatusPath())
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, gjson.GetBytes(data, "last_indexed_at").String())
	if err != nil {
		return time.Time{}
	}
	return t
}
