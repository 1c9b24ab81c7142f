package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateDoneAtColumn adds the done_at completion timestamp to nodes.
// Databases created before completion tracking lack it.
func MigrateDoneAtColumn(db *sql.DB) error {
	exists, err := columnExists(db, "nodes", "done_at")
	if err != nil {
		return fmt.Errorf("check nodes.done_at: %w", err)
	}
	if exists {
		return nil
	}
	_, err = db.Exec("ALTER TABLE nodes ADD COLUMN done_at INTEGER NOT NULL DEFAULT 0")
	return err
}
