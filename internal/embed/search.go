package embed

import (
	"context"

	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

// SearchResult is one semantic hit joined back to its node row.
type SearchResult struct {
	Node     *types.Node   `json:"node"`
	Score    float64       `json:"score"`
	Tags     []string      `json:"tags,omitempty"`
	Ancestor *types.Node   `json:"ancestor,omitempty"`
	Children []*types.Node `json:"children,omitempty"`
}

// SearchOptions tune a semantic search.
type SearchOptions struct {
	Limit         int
	WithAncestors bool // attach the nearest named ancestor
	ChildDepth    int  // attach the first N levels of children
}

// Searcher answers semantic queries over one workspace's vectors.
type Searcher struct {
	store   *sqlite.Store
	vectors *VecStore
	sink    Sink
}

// NewSearcher wires a semantic searcher.
func NewSearcher(store *sqlite.Store, vectors *VecStore, sink Sink) *Searcher {
	return &Searcher{store: store, vectors: vectors, sink: sink}
}

// Search embeds the query once and returns the k nearest nodes with their
// tags, optionally enriched with ancestor and child context.
func (s *Searcher) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	vectors, err := s.sink.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	matches, err := s.vectors.Search(vectors[0], opts.Limit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []*SearchResult{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.NodeID
	}
	nodes, err := s.store.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	tags, err := s.store.TagsOfNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*SearchResult, 0, len(matches))
	for _, m := range matches {
		node := byID[m.NodeID]
		if node == nil {
			continue // vector outlived its node; `st embed maintain` cleans these
		}
		r := &SearchResult{Node: node, Score: m.Score, Tags: tags[node.ID]}
		if opts.WithAncestors {
			if r.Ancestor, err = s.namedAncestor(ctx, node); err != nil {
				return nil, err
			}
		}
		if opts.ChildDepth > 0 {
			if r.Children, err = s.childLevels(ctx, node.ID, opts.ChildDepth); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Searcher) namedAncestor(ctx context.Context, node *types.Node) (*types.Node, error) {
	visited := map[string]bool{node.ID: true}
	cur := node
	for cur.ParentID != nil && !visited[*cur.ParentID] {
		visited[*cur.ParentID] = true
		parent, err := s.store.GetNode(ctx, *cur.ParentID)
		if err != nil {
			return nil, nil // dangling parent, no ancestor
		}
		if parent.Name != nil && *parent.Name != "" {
			return parent, nil
		}
		cur = parent
	}
	return nil, nil
}

func (s *Searcher) childLevels(ctx context.Context, nodeID string, depth int) ([]*types.Node, error) {
	var out []*types.Node
	level := []string{nodeID}
	for d := 0; d < depth && len(level) > 0; d++ {
		var next []string
		for _, id := range level {
			children, err := s.store.GetChildren(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				out = append(out, c)
				next = append(next, c.ID)
			}
		}
		level = next
	}
	return out, nil
}
