// Package embed maintains per-node vectors and answers semantic queries:
// a content filter that picks interesting nodes, an embedding generator
// with change detection, an on-disk vector store, and a KNN search path.
package embed

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

// systemDocTypes are structural record types that never carry user prose.
var systemDocTypes = []string{
	types.DocTypeTuple, types.DocTypeMetaNode, "viewDef", "search",
	"command", "hotkey", types.DocTypeTagDef, types.DocTypeAttrDef,
	"associatedData", "visual", "journalPart", "group", "chatbot",
	"workspace",
}

// FilterOptions compose the selection predicate. Every enabled option only
// removes candidates, never adds.
type FilterOptions struct {
	MinLength    int  // minimum name length, default 3; entities bypass it
	EntitiesOnly bool // keep only entity nodes
}

// DefaultFilterOptions returns the standard selection predicate.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{MinLength: 3}
}

// Candidate is one node selected for embedding.
type Candidate struct {
	NodeID string
	Name   string
	Entity bool
}

// Filter selects embeddable nodes from a store.
type Filter struct {
	store *sqlite.Store
	opts  FilterOptions
}

// NewFilter builds a content filter over the given store.
func NewFilter(store *sqlite.Store, opts FilterOptions) *Filter {
	if opts.MinLength <= 0 {
		opts.MinLength = 3
	}
	return &Filter{store: store, opts: opts}
}

// Select returns candidates ordered by node id. Name artifacts from imports
// (epoch-zero timestamps, raw reference syntax) and system record types are
// excluded up front; length and entity rules apply per node.
func (f *Filter) Select(ctx context.Context) ([]Candidate, error) {
	db := f.store.UnderlyingDB()
	args := make([]interface{}, 0, len(systemDocTypes))
	marks := make([]string, 0, len(systemDocTypes))
	for _, dt := range systemDocTypes {
		args = append(args, dt)
		marks = append(marks, "?")
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, raw FROM nodes
		WHERE name IS NOT NULL
		  AND name NOT LIKE '1970-01-01%'
		  AND name NOT LIKE '%[[%]]%'
		  AND (doc_type IS NULL OR doc_type NOT IN (`+strings.Join(marks, ",")+`))
		ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var raw []byte
		if err := rows.Scan(&c.NodeID, &c.Name, &raw); err != nil {
			return nil, err
		}
		c.Entity = isEntity(raw)
		if f.opts.EntitiesOnly && !c.Entity {
			continue
		}
		if len([]rune(c.Name)) < f.opts.MinLength && !c.Entity {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// isEntity mirrors the export's entity flagging: an explicit override, or
// an odd flags value.
func isEntity(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	if gjson.GetBytes(raw, "props._entity_override").Bool() {
		return true
	}
	return gjson.GetBytes(raw, "props.flags").Int()%2 == 1
}
