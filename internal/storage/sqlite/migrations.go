// Package sqlite - database migrations
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/tanatools/supertag/internal/storage/sqlite/migrations"
)

// Migration represents a single database migration
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run.
// Migrations are forward-only and idempotent; they run on every open.
var migrationsList = []Migration{
	{"done_at_column", migrations.MigrateDoneAtColumn},
	{"field_target_columns", migrations.MigrateFieldTargetColumns},
	{"embeddings_table", migrations.MigrateEmbeddingsTable},
	{"field_names_normalized", migrations.MigrateFieldNamesNormalized},
	{"populate_fts", migrations.MigratePopulateFTS},
}

// MigrationInfo contains metadata about a migration for inspection
type MigrationInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListMigrations returns all registered migrations with descriptions.
// All are idempotent, so this is the full list rather than pending ones.
func ListMigrations() []MigrationInfo {
	result := make([]MigrationInfo, len(migrationsList))
	for i, m := range migrationsList {
		result[i] = MigrationInfo{Name: m.Name, Description: migrationDescription(m.Name)}
	}
	return result
}

func migrationDescription(name string) string {
	descriptions := map[string]string{
		"done_at_column":         "Adds done_at column to nodes for completion timestamps",
		"field_target_columns":   "Adds target_supertag_id and default_value_id columns to supertag_fields",
		"embeddings_table":       "Adds embeddings metadata table for the vector store",
		"field_names_normalized": "Adds normalized_name column to field_names and backfills it",
		"populate_fts":           "Rebuilds the nodes_fts index when it is out of sync with nodes",
	}
	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return "Unknown migration"
}

// RunMigrations executes all registered migrations in order under an
// EXCLUSIVE transaction so parallel opens cannot race on check-then-modify
// operations.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, migration := range migrationsList {
		if err := migration.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true
	return nil
}
