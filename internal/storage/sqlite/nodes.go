package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
)

// nodeColumns is the canonical select list for node rows.
const nodeColumns = "id, name, parent_id, doc_type, created, updated, done_at, children, raw"

func scanNode(scan func(dest ...interface{}) error) (*types.Node, error) {
	var n types.Node
	var name, parent sql.NullString
	var children string
	var raw []byte
	if err := scan(&n.ID, &name, &parent, &n.DocType, &n.Created, &n.Updated, &n.DoneAt, &children, &raw); err != nil {
		return nil, err
	}
	if name.Valid {
		n.Name = &name.String
	}
	if parent.Valid {
		n.ParentID = &parent.String
	}
	if children != "" && children != "[]" {
		if err := json.Unmarshal([]byte(children), &n.Children); err != nil {
			return nil, fmt.Errorf("node %s: children column: %w", n.ID, err)
		}
	}
	n.Raw = raw
	return &n, nil
}

// GetNode returns one node by id.
func (s *Store) GetNode(ctx context.Context, id string) (*types.Node, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	n, err := scanNode(row.Scan)
	if err == sql.ErrNoRows {
		return nil, sterr.New(sterr.NodeNotFound, "node %s not found", id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return n, nil
}

// GetNodes returns the nodes for the given ids, in id order. Missing ids are
// silently absent from the result.
func (s *Store) GetNodes(ctx context.Context, ids []string) ([]*types.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + nodeColumns + " FROM nodes WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// GetChildren returns the direct children of a node, in the order recorded
// by the parent's children array when available, otherwise by id.
func (s *Store) GetChildren(ctx context.Context, parentID string) ([]*types.Node, error) {
	parent, err := s.GetNode(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if len(parent.Children) > 0 {
		nodes, err := s.GetNodes(ctx, parent.Children)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]*types.Node, len(nodes))
		for _, n := range nodes {
			byID[n.ID] = n
		}
		ordered := make([]*types.Node, 0, len(nodes))
		for _, id := range parent.Children {
			if n, ok := byID[id]; ok {
				ordered = append(ordered, n)
			}
		}
		return ordered, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE parent_id = ? ORDER BY id", parentID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// RecentNodes returns the most recently updated named nodes.
func (s *Store) RecentNodes(ctx context.Context, limit int) ([]*types.Node, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE name IS NOT NULL ORDER BY updated DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// AllNodeIDs returns every node id, ordered. Feeds untargeted queries.
func (s *Store) AllNodeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM nodes ORDER BY id")
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

// FTSMatch is one raw full-text hit.
type FTSMatch struct {
	NodeID  string
	Snippet string
	Rank    float64
}

// SearchNames runs an FTS5 match over node names, ranked by bm25.
// Bare single-word queries get a trailing * for prefix matching.
func (s *Store) SearchNames(ctx context.Context, query string, limit int) ([]FTSMatch, error) {
	if limit <= 0 {
		limit = 100
	}
	match := query
	if !strings.ContainsAny(match, " \"*:()") {
		match += "*"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, snippet(nodes_fts, 0, '[', ']', '…', 16), bm25(nodes_fts)
		FROM nodes_fts
		JOIN nodes n ON nodes_fts.rowid = n.rowid
		WHERE nodes_fts MATCH ?
		ORDER BY bm25(nodes_fts), n.id
		LIMIT ?`, match, limit)
	if err != nil {
		// FTS syntax errors from exotic user input degrade to no matches.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, classify(err)
	}
	defer rows.Close()
	var out []FTSMatch
	for rows.Next() {
		var m FTSMatch
		if err := rows.Scan(&m.NodeID, &m.Snippet, &m.Rank); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// NodeSignatures returns id → normalized signature for every stored node.
// The indexer diffs a snapshot against this map.
func (tx *Tx) NodeSignatures() (map[string]string, error) {
	rows, err := tx.conn.QueryContext(tx.ctx, "SELECT id, signature FROM nodes")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	sigs := make(map[string]string)
	for rows.Next() {
		var id, sig string
		if err := rows.Scan(&id, &sig); err != nil {
			return nil, err
		}
		sigs[id] = sig
	}
	return sigs, rows.Err()
}

// nodeInsertBatch is sized so the flattened arg list stays well under
// SQLite's default 32k variable limit (9 columns per row).
const nodeInsertBatch = 500

// InsertNodes bulk-inserts nodes with their signatures.
func (tx *Tx) InsertNodes(nodes []*types.Node, sigs []string) error {
	for start := 0; start < len(nodes); start += nodeInsertBatch {
		end := start + nodeInsertBatch
		if end > len(nodes) {
			end = len(nodes)
		}
		var sb strings.Builder
		sb.WriteString("INSERT INTO nodes (id, name, parent_id, doc_type, created, updated, done_at, children, signature, raw) VALUES ")
		args := make([]interface{}, 0, (end-start)*10)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?,?,?,?,?,?)")
			args = append(args, nodeArgs(nodes[i], sigs[i])...)
		}
		if _, err := tx.conn.ExecContext(tx.ctx, sb.String(), args...); err != nil {
			return classify(fmt.Errorf("insert nodes: %w", err))
		}
	}
	return nil
}

// UpdateNode rewrites one node row in place.
func (tx *Tx) UpdateNode(n *types.Node, sig string) error {
	args := nodeArgs(n, sig)
	// nodeArgs order: id, name, parent, doc_type, created, updated, done_at, children, sig, raw
	_, err := tx.conn.ExecContext(tx.ctx, `
		UPDATE nodes SET name = ?, parent_id = ?, doc_type = ?, created = ?, updated = ?,
			done_at = ?, children = ?, signature = ?, raw = ?
		WHERE id = ?`,
		args[1], args[2], args[3], args[4], args[5], args[6], args[7], args[8], args[9], args[0])
	if err != nil {
		return classify(fmt.Errorf("update node %s: %w", n.ID, err))
	}
	return nil
}

// DeleteNodes removes nodes and cascades to outbound refs, tag applications
// carried by or applied to them, and field values anchored on them.
func (tx *Tx) DeleteNodes(ids []string) error {
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		ph := placeholders(end - start)
		args := stringArgs(ids[start:end])
		twice := append(append([]interface{}{}, args...), args...)
		stmts := []struct {
			sql  string
			args []interface{}
		}{
			{"DELETE FROM refs WHERE from_node IN (" + ph + ")", args},
			{"DELETE FROM tag_apps WHERE data_node_id IN (" + ph + ") OR tuple_node_id IN (" + ph + ")", twice},
			{"DELETE FROM field_values WHERE parent_id IN (" + ph + ") OR tuple_id IN (" + ph + ")", twice},
			{"DELETE FROM embeddings WHERE node_id IN (" + ph + ")", args},
			{"DELETE FROM nodes WHERE id IN (" + ph + ")", args},
		}
		for _, stmt := range stmts {
			if _, err := tx.conn.ExecContext(tx.ctx, stmt.sql, stmt.args...); err != nil {
				return classify(fmt.Errorf("cascade delete: %w", err))
			}
		}
	}
	return nil
}

// RebuildFTS repopulates the external-content FTS index from nodes.
func (tx *Tx) RebuildFTS() error {
	if _, err := tx.conn.ExecContext(tx.ctx, "INSERT INTO nodes_fts(nodes_fts) VALUES('rebuild')"); err != nil {
		return classify(fmt.Errorf("rebuild fts: %w", err))
	}
	return nil
}

func nodeArgs(n *types.Node, sig string) []interface{} {
	var name, parent interface{}
	if n.Name != nil {
		name = *n.Name
	}
	if n.ParentID != nil {
		parent = *n.ParentID
	}
	children := "[]"
	if len(n.Children) > 0 {
		b, _ := json.Marshal(n.Children)
		children = string(b)
	}
	var raw interface{}
	if len(n.Raw) > 0 {
		raw = []byte(n.Raw)
	}
	return []interface{}{n.ID, name, parent, n.DocType, n.Created, n.Updated, n.DoneAt, children, sig, raw}
}

func collectNodes(rows *sql.Rows) ([]*types.Node, error) {
	var out []*types.Node
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
