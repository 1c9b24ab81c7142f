package migrations

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"
)

// MigrateFieldNamesNormalized adds normalized_name to field_names and
// backfills it, enabling field resolution by normalized name.
func MigrateFieldNamesNormalized(db *sql.DB) error {
	exists, err := columnExists(db, "field_names", "normalized_name")
	if err != nil {
		return fmt.Errorf("check field_names.normalized_name: %w", err)
	}
	if !exists {
		if _, err := db.Exec("ALTER TABLE field_names ADD COLUMN normalized_name TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}

	rows, err := db.Query("SELECT field_label_id, name FROM field_names WHERE normalized_name = ''")
	if err != nil {
		return err
	}
	type pair struct{ id, norm string }
	var backfill []pair
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		backfill = append(backfill, pair{id, normalize(name)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range backfill {
		if _, err := db.Exec("UPDATE field_names SET normalized_name = ? WHERE field_label_id = ?", p.norm, p.id); err != nil {
			return err
		}
	}
	return nil
}

// normalize lowercases and strips non-alphanumerics. Kept local so the
// migration stays stable even if the live normalization rules ever change.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
