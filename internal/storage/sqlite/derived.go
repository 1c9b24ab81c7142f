package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/tanatools/supertag/internal/types"
)

// ClearDerived drops every derived row. The indexer re-derives refs, tag
// applications, field values, field names and the supertag catalog from each
// snapshot inside the same transaction.
func (tx *Tx) ClearDerived() error {
	for _, table := range []string{
		"refs", "tag_apps", "field_values", "field_names",
		"supertags", "supertag_fields", "supertag_parents",
	} {
		if _, err := tx.conn.ExecContext(tx.ctx, "DELETE FROM "+table); err != nil {
			return classify(fmt.Errorf("clear %s: %w", table, err))
		}
	}
	return nil
}

const refInsertBatch = 1000

// InsertRefs bulk-inserts reference edges.
func (tx *Tx) InsertRefs(refs []types.Reference) error {
	for start := 0; start < len(refs); start += refInsertBatch {
		end := start + refInsertBatch
		if end > len(refs) {
			end = len(refs)
		}
		var sb strings.Builder
		sb.WriteString("INSERT INTO refs (from_node, to_node, ref_type) VALUES ")
		args := make([]interface{}, 0, (end-start)*3)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?)")
			args = append(args, refs[i].FromNode, refs[i].ToNode, refs[i].RefType)
		}
		if _, err := tx.conn.ExecContext(tx.ctx, sb.String(), args...); err != nil {
			return classify(fmt.Errorf("insert refs: %w", err))
		}
	}
	return nil
}

// InsertTagApps bulk-inserts tag applications. Duplicate carrier tuples in a
// malformed snapshot are ignored rather than failing the run.
func (tx *Tx) InsertTagApps(apps []types.TagApplication) error {
	const batch = 1000
	for start := 0; start < len(apps); start += batch {
		end := start + batch
		if end > len(apps) {
			end = len(apps)
		}
		var sb strings.Builder
		sb.WriteString("INSERT OR IGNORE INTO tag_apps (tuple_node_id, data_node_id, tag_id, tag_name) VALUES ")
		args := make([]interface{}, 0, (end-start)*4)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?)")
			args = append(args, apps[i].TupleNodeID, apps[i].DataNodeID, apps[i].TagID, apps[i].TagName)
		}
		if _, err := tx.conn.ExecContext(tx.ctx, sb.String(), args...); err != nil {
			return classify(fmt.Errorf("insert tag apps: %w", err))
		}
	}
	return nil
}

// InsertFieldValues bulk-inserts field values. The unique constraint on
// (parent_id, field_def_id, value_order) absorbs duplicated tuples.
func (tx *Tx) InsertFieldValues(vals []types.FieldValue) error {
	const batch = 1000
	for start := 0; start < len(vals); start += batch {
		end := start + batch
		if end > len(vals) {
			end = len(vals)
		}
		var sb strings.Builder
		sb.WriteString("INSERT OR IGNORE INTO field_values (tuple_id, parent_id, field_def_id, field_name, value_node_id, value_text, value_order) VALUES ")
		args := make([]interface{}, 0, (end-start)*7)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?,?,?)")
			v := vals[i]
			args = append(args, v.TupleID, v.ParentID, v.FieldDefID, v.FieldName, v.ValueNodeID, v.ValueText, v.ValueOrder)
		}
		if _, err := tx.conn.ExecContext(tx.ctx, sb.String(), args...); err != nil {
			return classify(fmt.Errorf("insert field values: %w", err))
		}
	}
	return nil
}

// UpsertFieldName records a field label node.
func (tx *Tx) UpsertFieldName(labelID, name, normalized string) error {
	_, err := tx.conn.ExecContext(tx.ctx, `
		INSERT INTO field_names (field_label_id, name, normalized_name) VALUES (?,?,?)
		ON CONFLICT(field_label_id) DO UPDATE SET name = excluded.name, normalized_name = excluded.normalized_name`,
		labelID, name, normalized)
	if err != nil {
		return classify(fmt.Errorf("upsert field name %s: %w", labelID, err))
	}
	return nil
}

// TagsOfNode returns the deduplicated tag applications on a data node.
func (s *Store) TagsOfNode(ctx context.Context, nodeID string) ([]types.TagApplication, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tuple_node_id, data_node_id, tag_id, tag_name
		FROM tag_apps WHERE data_node_id = ? ORDER BY tag_id`, nodeID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []types.TagApplication
	seen := map[string]bool{}
	for rows.Next() {
		var a types.TagApplication
		if err := rows.Scan(&a.TupleNodeID, &a.DataNodeID, &a.TagID, &a.TagName); err != nil {
			return nil, err
		}
		if seen[a.TagID] {
			continue
		}
		seen[a.TagID] = true
		out = append(out, a)
	}
	return out, rows.Err()
}

// TagsOfNodes returns data node id → tag names for a batch of nodes.
func (s *Store) TagsOfNodes(ctx context.Context, nodeIDs []string) (map[string][]string, error) {
	if len(nodeIDs) == 0 {
		return map[string][]string{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT data_node_id, tag_name FROM tag_apps WHERE data_node_id IN ("+placeholders(len(nodeIDs))+") ORDER BY tag_name",
		stringArgs(nodeIDs)...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}

// FieldValuesOfNode returns all field values anchored on a node, ordered by
// field then value order.
func (s *Store) FieldValuesOfNode(ctx context.Context, nodeID string) ([]types.FieldValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tuple_id, parent_id, field_def_id, field_name, value_node_id, value_text, value_order
		FROM field_values WHERE parent_id = ? ORDER BY field_def_id, value_order`, nodeID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return collectFieldValues(rows)
}

// FieldValuesByName returns all values of a field across the store, matching
// by normalized field name. Feeds `st fields values`.
func (s *Store) FieldValuesByName(ctx context.Context, normalizedName string, limit int) ([]types.FieldValue, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT fv.tuple_id, fv.parent_id, fv.field_def_id, fv.field_name, fv.value_node_id, fv.value_text, fv.value_order
		FROM field_values fv
		JOIN field_names fn ON fn.field_label_id = fv.field_def_id
		WHERE fn.normalized_name = ?
		ORDER BY fv.parent_id, fv.value_order LIMIT ?`, normalizedName, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return collectFieldValues(rows)
}

// FieldNameCount is one known field name with its usage count.
type FieldNameCount struct {
	FieldLabelID string `json:"field_label_id"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
}

// ListFieldNames returns every known field name with how many values carry
// it, most used first.
func (s *Store) ListFieldNames(ctx context.Context) ([]FieldNameCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fn.field_label_id, fn.name, COUNT(fv.tuple_id)
		FROM field_names fn
		LEFT JOIN field_values fv ON fv.field_def_id = fn.field_label_id
		GROUP BY fn.field_label_id, fn.name
		ORDER BY COUNT(fv.tuple_id) DESC, fn.name`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []FieldNameCount
	for rows.Next() {
		var fc FieldNameCount
		if err := rows.Scan(&fc.FieldLabelID, &fc.Name, &fc.Count); err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// NodesWithTag returns the ids of nodes carrying the given supertag,
// ordered by id.
func (s *Store) NodesWithTag(ctx context.Context, tagID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT data_node_id FROM tag_apps WHERE tag_id = ? ORDER BY data_node_id", tagID)
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

// FieldValuesOfNodes returns parent node id → normalized field name →
// ordered value texts, for a batch of nodes.
func (s *Store) FieldValuesOfNodes(ctx context.Context, nodeIDs []string) (map[string]map[string][]string, error) {
	out := make(map[string]map[string][]string)
	if len(nodeIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT fv.parent_id, fn.normalized_name, fv.value_text
		FROM field_values fv
		JOIN field_names fn ON fn.field_label_id = fv.field_def_id
		WHERE fv.parent_id IN (`+placeholders(len(nodeIDs))+`)
		ORDER BY fv.parent_id, fv.field_def_id, fv.value_order`,
		stringArgs(nodeIDs)...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var parent, field, value string
		if err := rows.Scan(&parent, &field, &value); err != nil {
			return nil, err
		}
		byField := out[parent]
		if byField == nil {
			byField = make(map[string][]string)
			out[parent] = byField
		}
		byField[field] = append(byField[field], value)
	}
	return out, rows.Err()
}

// RefsOfNode returns deduplicated outbound and inbound references.
func (s *Store) RefsOfNode(ctx context.Context, nodeID string) (outbound, inbound []types.Reference, err error) {
	collect := func(query string) ([]types.Reference, error) {
		rows, err := s.db.QueryContext(ctx, query, nodeID)
		if err != nil {
			return nil, classify(err)
		}
		defer rows.Close()
		var out []types.Reference
		for rows.Next() {
			var r types.Reference
			if err := rows.Scan(&r.FromNode, &r.ToNode, &r.RefType); err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, rows.Err()
	}
	outbound, err = collect("SELECT DISTINCT from_node, to_node, ref_type FROM refs WHERE from_node = ? ORDER BY to_node")
	if err != nil {
		return nil, nil, err
	}
	inbound, err = collect("SELECT DISTINCT from_node, to_node, ref_type FROM refs WHERE to_node = ? ORDER BY from_node")
	if err != nil {
		return nil, nil, err
	}
	return outbound, inbound, nil
}

func collectFieldValues(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]types.FieldValue, error) {
	var out []types.FieldValue
	for rows.Next() {
		var v types.FieldValue
		if err := rows.Scan(&v.TupleID, &v.ParentID, &v.FieldDefID, &v.FieldName, &v.ValueNodeID, &v.ValueText, &v.ValueOrder); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
