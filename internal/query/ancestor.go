package query

import (
	"context"
	"sort"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

// ResolveMode selects how raw matches are lifted to result nodes.
type ResolveMode string

const (
	// ResolveTagged climbs to the nearest ancestor carrying any supertag.
	ResolveTagged ResolveMode = "tagged"
	// ResolveNamed climbs to the nearest ancestor with a non-null name.
	ResolveNamed ResolveMode = "named"
	// ResolveRaw returns the matches unchanged.
	ResolveRaw ResolveMode = "raw"
)

// maxAncestorDepth caps parent walks; the graph may contain parent cycles
// from malformed exports.
const maxAncestorDepth = 50

// AncestorHit is one resolved result: the ancestor node, its tags, and how
// many raw matches collapsed into it.
type AncestorHit struct {
	Node       *types.Node `json:"node"`
	Tags       []string    `json:"tags,omitempty"`
	MatchCount int         `json:"match_count"`
	Snippet    string      `json:"snippet,omitempty"`
}

// ResolveAncestors lifts FTS matches per the mode, deduplicating across
// matches and counting collapses. Output is ordered by match count
// descending, then ancestor id.
func ResolveAncestors(ctx context.Context, store *sqlite.Store, matches []sqlite.FTSMatch, mode ResolveMode) ([]*AncestorHit, error) {
	byID := make(map[string]*AncestorHit)
	var order []string

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node, tags, err := resolveOne(ctx, store, m.NodeID, mode)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		hit := byID[node.ID]
		if hit == nil {
			hit = &AncestorHit{Node: node, Tags: tags, Snippet: m.Snippet}
			byID[node.ID] = hit
			order = append(order, node.ID)
		}
		hit.MatchCount++
	}

	out := make([]*AncestorHit, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MatchCount != out[j].MatchCount {
			return out[i].MatchCount > out[j].MatchCount
		}
		return out[i].Node.ID < out[j].Node.ID
	})
	return out, nil
}

// resolveOne walks parent_id until the mode's predicate holds. The starting
// node itself counts when it already satisfies the predicate. Returns nil
// when no ancestor qualifies within the depth cap.
func resolveOne(ctx context.Context, store *sqlite.Store, nodeID string, mode ResolveMode) (*types.Node, []string, error) {
	visited := make(map[string]bool)
	id := nodeID
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if visited[id] {
			return nil, nil, nil
		}
		visited[id] = true

		node, err := store.GetNode(ctx, id)
		if err != nil {
			// Dangling parent ids end the walk rather than failing it.
			if sterr.IsKind(err, sterr.NodeNotFound) {
				return nil, nil, nil
			}
			return nil, nil, err
		}
		switch mode {
		case ResolveRaw:
			return node, nil, nil
		case ResolveNamed:
			if node.Name != nil {
				return node, nil, nil
			}
		case ResolveTagged:
			apps, err := store.TagsOfNode(ctx, id)
			if err != nil {
				return nil, nil, err
			}
			if len(apps) > 0 {
				tags := make([]string, 0, len(apps))
				for _, a := range apps {
					tags = append(tags, a.TagName)
				}
				sort.Strings(tags)
				return node, tags, nil
			}
		}
		if node.ParentID == nil {
			return nil, nil, nil
		}
		id = *node.ParentID
	}
	return nil, nil, nil
}
