package sqlite

import (
	"context"
	"database/sql"
	"os"

	"github.com/tanatools/supertag/internal/types"
)

// SetConfig stores a user-visible setting.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO config (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return classify(err)
}

// GetConfig returns a setting, or "" when unset.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, classify(err)
}

// SetMetadata stores internal state (last export file, catalog hash).
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return classify(err)
}

// GetMetadata returns internal state, or "" when unset.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, classify(err)
}

// SetMetadata within an index transaction.
func (tx *Tx) SetMetadata(key, value string) error {
	_, err := tx.conn.ExecContext(tx.ctx,
		"INSERT INTO metadata (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return classify(err)
}

// Metadata keys used by the indexer.
const (
	MetaLastExportFile = "last_export_file"
	MetaLastIndexedAt  = "last_indexed_at"
)

// Statistics gathers the store-level stats block.
func (s *Store) Statistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{DBPath: s.path}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes", &stats.Nodes},
		{"SELECT COUNT(*) FROM nodes WHERE name IS NOT NULL", &stats.NamedNodes},
		{"SELECT COUNT(*) FROM refs", &stats.Refs},
		{"SELECT COUNT(*) FROM tag_apps", &stats.TagApps},
		{"SELECT COUNT(*) FROM field_values", &stats.FieldValues},
		{"SELECT COUNT(*) FROM supertags", &stats.Supertags},
		{"SELECT COUNT(*) FROM supertag_fields", &stats.Fields},
		{"SELECT COUNT(*) FROM embeddings", &stats.Embeddings},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, classify(err)
		}
	}
	if last, err := s.GetMetadata(ctx, MetaLastExportFile); err == nil {
		stats.LastExport = last
	}
	if fi, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = fi.Size()
	}
	return stats, nil
}

// Counts used by the index report, read inside the index transaction so the
// report reflects the state being committed.
func (tx *Tx) Counts() (nodes, supertags, fields, refs, tagApps int, err error) {
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes", &nodes},
		{"SELECT COUNT(*) FROM supertags", &supertags},
		{"SELECT COUNT(*) FROM supertag_fields", &fields},
		{"SELECT COUNT(*) FROM refs", &refs},
		{"SELECT COUNT(*) FROM tag_apps", &tagApps},
	}
	for _, c := range counts {
		if err = tx.conn.QueryRowContext(tx.ctx, c.query).Scan(c.dest); err != nil {
			return 0, 0, 0, 0, 0, classify(err)
		}
	}
	return nodes, supertags, fields, refs, tagApps, nil
}

// IntegrityReport is the `st stats --db` health block.
type IntegrityReport struct {
	FTSRows      int  `json:"fts_rows"`
	Nodes        int  `json:"nodes"`
	FTSInSync    bool `json:"fts_in_sync"`
	OrphanRefs   int  `json:"orphan_refs"`
	DanglingTags int  `json:"dangling_tag_apps"`
}

// CheckIntegrity runs cheap consistency probes over the store.
func (s *Store) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	rep := &IntegrityReport{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes_fts").Scan(&rep.FTSRows); err != nil {
		return nil, classify(err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&rep.Nodes); err != nil {
		return nil, classify(err)
	}
	// The external-content rebuild indexes every nodes row, named or not.
	rep.FTSInSync = rep.FTSRows == rep.Nodes
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM refs r WHERE NOT EXISTS (SELECT 1 FROM nodes n WHERE n.id = r.from_node)").Scan(&rep.OrphanRefs); err != nil {
		return nil, classify(err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tag_apps t WHERE NOT EXISTS (SELECT 1 FROM nodes n WHERE n.id = t.data_node_id)").Scan(&rep.DanglingTags); err != nil {
		return nil, classify(err)
	}
	return rep, nil
}
