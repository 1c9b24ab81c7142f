package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateEmbeddingsTable creates the embeddings metadata table for databases
// created before semantic search existed.
func MigrateEmbeddingsTable(db *sql.DB) error {
	exists, err := tableExists(db, "embeddings")
	if err != nil {
		return fmt.Errorf("check embeddings table: %w", err)
	}
	if exists {
		return nil
	}
	_, err = db.Exec(`
		CREATE TABLE embeddings (
			node_id TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL,
			text_hash TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}
