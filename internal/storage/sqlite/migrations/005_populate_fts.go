package migrations

import (
	"database/sql"
	"fmt"
)

// MigratePopulateFTS rebuilds nodes_fts when it is out of sync with nodes.
// This repairs databases where a crash landed between node writes and the
// FTS rebuild step.
func MigratePopulateFTS(db *sql.DB) error {
	exists, err := tableExists(db, "nodes_fts")
	if err != nil {
		return fmt.Errorf("check nodes_fts: %w", err)
	}
	if !exists {
		// Base schema creates it; nothing to repair on first open.
		return nil
	}

	var nodes, indexed int
	if err := db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&nodes); err != nil {
		return err
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM nodes_fts").Scan(&indexed); err != nil {
		// A corrupted shadow table also lands here; rebuild handles both.
		indexed = -1
	}
	if nodes == indexed {
		return nil
	}
	_, err = db.Exec("INSERT INTO nodes_fts(nodes_fts) VALUES('rebuild')")
	return err
}
