package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EmbeddingRow is the bookkeeping side of one stored vector; the vector
// bytes themselves live in the sibling vector store.
type EmbeddingRow struct {
	NodeID     string
	Dimensions int
	TextHash   string
	UpdatedAt  int64
}

// EmbeddingHashes returns node id → text hash for every embedded node.
// The generator diffs candidate texts against this map.
func (s *Store) EmbeddingHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT node_id, text_hash FROM embeddings")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// UpsertEmbedding records that a node's vector is current for text_hash.
func (s *Store) UpsertEmbedding(ctx context.Context, nodeID string, dimensions int, textHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (node_id, dimensions, text_hash, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT(node_id) DO UPDATE SET
			dimensions = excluded.dimensions,
			text_hash = excluded.text_hash,
			updated_at = excluded.updated_at`,
		nodeID, dimensions, textHash, time.Now().UnixMilli())
	if err != nil {
		return classify(fmt.Errorf("upsert embedding %s: %w", nodeID, err))
	}
	return nil
}

// DeleteEmbeddings removes bookkeeping rows for the given nodes.
func (s *Store) DeleteEmbeddings(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE node_id IN ("+placeholders(len(nodeIDs))+")",
		stringArgs(nodeIDs)...)
	if err != nil {
		return classify(err)
	}
	return nil
}

// EmbeddingStats summarizes the embeddings table.
type EmbeddingStats struct {
	Count      int   `json:"count"`
	Dimensions int   `json:"dimensions"`
	OldestAt   int64 `json:"oldest_at"`
	NewestAt   int64 `json:"newest_at"`
}

// EmbeddingStatistics reports vector bookkeeping counts.
func (s *Store) EmbeddingStatistics(ctx context.Context) (*EmbeddingStats, error) {
	var st EmbeddingStats
	var dims, oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(dimensions), MIN(updated_at), MAX(updated_at) FROM embeddings`).
		Scan(&st.Count, &dims, &oldest, &newest)
	if err != nil {
		return nil, classify(err)
	}
	st.Dimensions = int(dims.Int64)
	st.OldestAt = oldest.Int64
	st.NewestAt = newest.Int64
	return &st, nil
}
