package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tanatools/supertag/internal/types"
)

// UpsertSupertag writes supertag metadata.
func (tx *Tx) UpsertSupertag(st *types.Supertag) error {
	_, err := tx.conn.ExecContext(tx.ctx, `
		INSERT INTO supertags (tag_id, tag_name, normalized_name, description, color)
		VALUES (?,?,?,?,?)
		ON CONFLICT(tag_id) DO UPDATE SET
			tag_name = excluded.tag_name,
			normalized_name = excluded.normalized_name,
			description = excluded.description,
			color = excluded.color`,
		st.ID, st.Name, st.NormalizedName, nullable(st.Description), nullable(st.Color))
	if err != nil {
		return classify(fmt.Errorf("upsert supertag %s: %w", st.ID, err))
	}
	return nil
}

// UpsertSupertagField writes one field definition.
func (tx *Tx) UpsertSupertagField(f *types.SupertagField) error {
	_, err := tx.conn.ExecContext(tx.ctx, `
		INSERT INTO supertag_fields
			(tag_id, field_label_id, field_name, field_order, normalized_name, description,
			 inferred_data_type, target_supertag_id, default_value_id)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(tag_id, field_label_id) DO UPDATE SET
			field_name = excluded.field_name,
			field_order = excluded.field_order,
			normalized_name = excluded.normalized_name,
			description = excluded.description,
			inferred_data_type = excluded.inferred_data_type,
			target_supertag_id = excluded.target_supertag_id,
			default_value_id = excluded.default_value_id`,
		f.TagID, f.FieldLabelID, f.Name, f.FieldOrder, f.NormalizedName,
		nullable(f.Description), string(f.DataType), nullable(f.TargetSupertagID), nullable(f.DefaultValueID))
	if err != nil {
		return classify(fmt.Errorf("upsert supertag field %s/%s: %w", f.TagID, f.FieldLabelID, err))
	}
	return nil
}

// ClearSupertagCatalog drops the supertag tables only, leaving nodes and
// derived value rows intact. Used when loading a catalog document.
func (tx *Tx) ClearSupertagCatalog() error {
	for _, table := range []string{"supertags", "supertag_fields", "supertag_parents"} {
		if _, err := tx.conn.ExecContext(tx.ctx, "DELETE FROM "+table); err != nil {
			return classify(fmt.Errorf("clear %s: %w", table, err))
		}
	}
	return nil
}

// InsertSupertagParent records one inheritance edge. Cycle rejection happens
// in the indexer before this is called.
func (tx *Tx) InsertSupertagParent(childID, parentID string) error {
	_, err := tx.conn.ExecContext(tx.ctx,
		"INSERT OR IGNORE INTO supertag_parents (child_tag_id, parent_tag_id) VALUES (?,?)",
		childID, parentID)
	if err != nil {
		return classify(fmt.Errorf("insert supertag parent %s -> %s: %w", childID, parentID, err))
	}
	return nil
}

const supertagColumns = "tag_id, tag_name, normalized_name, description, color"

func scanSupertag(scan func(...interface{}) error) (*types.Supertag, error) {
	var st types.Supertag
	var desc, color sql.NullString
	if err := scan(&st.ID, &st.Name, &st.NormalizedName, &desc, &color); err != nil {
		return nil, err
	}
	if desc.Valid {
		st.Description = &desc.String
	}
	if color.Valid {
		st.Color = &color.String
	}
	return &st, nil
}

// SupertagByID returns bare supertag metadata (no fields, no parents), or
// nil when absent.
func (s *Store) SupertagByID(ctx context.Context, tagID string) (*types.Supertag, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+supertagColumns+" FROM supertags WHERE tag_id = ?", tagID)
	st, err := scanSupertag(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return st, nil
}

// SupertagByName resolves by exact name; multiple exact matches resolve to
// the lowest tag id for determinism. Returns nil when absent.
func (s *Store) SupertagByName(ctx context.Context, name string) (*types.Supertag, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+supertagColumns+" FROM supertags WHERE tag_name = ? ORDER BY tag_id LIMIT 1", name)
	st, err := scanSupertag(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return st, nil
}

// SupertagByNormalizedName resolves by normalized name. Returns nil when absent.
func (s *Store) SupertagByNormalizedName(ctx context.Context, normalized string) (*types.Supertag, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+supertagColumns+" FROM supertags WHERE normalized_name = ? ORDER BY tag_id LIMIT 1", normalized)
	st, err := scanSupertag(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return st, nil
}

// ListSupertags returns all supertags ordered by name.
func (s *Store) ListSupertags(ctx context.Context) ([]*types.Supertag, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+supertagColumns+" FROM supertags ORDER BY tag_name, tag_id")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return collectSupertags(rows)
}

// SearchSupertags finds supertags by case-insensitive substring over name
// and normalized name.
func (s *Store) SearchSupertags(ctx context.Context, query string) ([]*types.Supertag, error) {
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+supertagColumns+` FROM supertags
		WHERE tag_name LIKE ? COLLATE NOCASE OR normalized_name LIKE ? COLLATE NOCASE
		ORDER BY tag_name, tag_id`, like, like)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return collectSupertags(rows)
}

// SupertagFields returns a tag's own fields ordered by field_order.
func (s *Store) SupertagFields(ctx context.Context, tagID string) ([]*types.SupertagField, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag_id, field_label_id, field_name, field_order, normalized_name,
		       description, inferred_data_type, target_supertag_id, default_value_id
		FROM supertag_fields WHERE tag_id = ? ORDER BY field_order, field_label_id`, tagID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []*types.SupertagField
	for rows.Next() {
		var f types.SupertagField
		var desc, target, dflt sql.NullString
		var dt string
		if err := rows.Scan(&f.TagID, &f.FieldLabelID, &f.Name, &f.FieldOrder, &f.NormalizedName,
			&desc, &dt, &target, &dflt); err != nil {
			return nil, err
		}
		f.DataType = types.FieldDataType(dt)
		if desc.Valid {
			f.Description = &desc.String
		}
		if target.Valid {
			f.TargetSupertagID = &target.String
		}
		if dflt.Valid {
			f.DefaultValueID = &dflt.String
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// SupertagParents returns the direct parent tag ids of a tag, sorted.
func (s *Store) SupertagParents(ctx context.Context, tagID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT parent_tag_id FROM supertag_parents WHERE child_tag_id = ? ORDER BY parent_tag_id", tagID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TopSupertags returns tag name/id with application counts, most used first.
func (s *Store) TopSupertags(ctx context.Context, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ta.tag_id, ta.tag_name, COUNT(DISTINCT ta.data_node_id)
		FROM tag_apps ta
		GROUP BY ta.tag_id, ta.tag_name
		ORDER BY COUNT(DISTINCT ta.data_node_id) DESC, ta.tag_name
		LIMIT ?`, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.TagID, &tc.TagName, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// TagCount is one row of TopSupertags.
type TagCount struct {
	TagID   string `json:"tag_id"`
	TagName string `json:"tag_name"`
	Count   int    `json:"count"`
}

func collectSupertags(rows *sql.Rows) ([]*types.Supertag, error) {
	var out []*types.Supertag
	for rows.Next() {
		st, err := scanSupertag(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
