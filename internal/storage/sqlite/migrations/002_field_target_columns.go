package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateFieldTargetColumns adds target_supertag_id and default_value_id to
// supertag_fields for reference-typed fields and field defaults.
func MigrateFieldTargetColumns(db *sql.DB) error {
	for _, col := range []string{"target_supertag_id", "default_value_id"} {
		exists, err := columnExists(db, "supertag_fields", col)
		if err != nil {
			return fmt.Errorf("check supertag_fields.%s: %w", col, err)
		}
		if exists {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE supertag_fields ADD COLUMN %s TEXT", col)); err != nil {
			return err
		}
	}
	return nil
}
