package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/storage/sqlite"
)

const (
	// DefaultBatchSize is the number of texts per embedding request.
	DefaultBatchSize = 32

	// contextAncestors bounds the ancestor snippet prepended to each text.
	contextAncestors = 2
	maxTextLen       = 500
)

// Generator keeps the vector store in sync with the content filter's
// selection, embedding only nodes whose text changed.
type Generator struct {
	store   *sqlite.Store
	vectors *VecStore
	sink    Sink
	filter  *Filter
	batch   int
}

// NewGenerator wires a generator. A batch size <= 0 uses the default.
func NewGenerator(store *sqlite.Store, vectors *VecStore, sink Sink, filter *Filter, batch int) *Generator {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Generator{store: store, vectors: vectors, sink: sink, filter: filter, batch: batch}
}

// GenerateReport summarizes one generation run.
type GenerateReport struct {
	Selected int `json:"selected"`
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
	Batches  int `json:"batches"`
}

// Generate embeds every selected node whose text hash changed. Progress is
// durable per batch; cancellation is honored between batches, so a canceled
// run resumes where it left off.
func (g *Generator) Generate(ctx context.Context) (*GenerateReport, error) {
	candidates, err := g.filter.Select(ctx)
	if err != nil {
		return nil, err
	}
	hashes, err := g.store.EmbeddingHashes(ctx)
	if err != nil {
		return nil, err
	}

	report := &GenerateReport{Selected: len(candidates)}
	type pending struct {
		nodeID string
		text   string
		hash   string
	}
	var todo []pending
	for _, c := range candidates {
		text, err := g.buildText(ctx, c)
		if err != nil {
			return nil, err
		}
		hash := TextHash(text)
		if hashes[c.NodeID] == hash && g.vectors.Has(c.NodeID) {
			report.Skipped++
			continue
		}
		todo = append(todo, pending{nodeID: c.NodeID, text: text, hash: hash})
	}

	for start := 0; start < len(todo); start += g.batch {
		if err := ctx.Err(); err != nil {
			debug.Logf("embed: canceled after %d batches, %d embedded", report.Batches, report.Embedded)
			return report, sterr.Wrap(sterr.Timeout, err, "embedding canceled")
		}
		end := start + g.batch
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}
		vectors, err := g.sink.Embed(ctx, texts)
		if err != nil {
			return report, err
		}
		report.Batches++
		for i, p := range batch {
			vec := vectors[i]
			if dims := g.vectors.Dimensions(); dims != 0 && len(vec) != dims {
				return report, sterr.New(sterr.APIError,
					"model returned %d dimensions, store has %d; run `st embed maintain --reset`", len(vec), dims)
			}
			if err := g.vectors.Put(p.nodeID, vec); err != nil {
				return report, err
			}
			if err := g.store.UpsertEmbedding(ctx, p.nodeID, len(vec), p.hash); err != nil {
				return report, err
			}
			report.Embedded++
		}
	}
	return report, nil
}

// Maintain drops vectors whose nodes left the selection (deleted, renamed
// into an exclusion, or filtered out) and returns how many were removed.
func (g *Generator) Maintain(ctx context.Context) (int, error) {
	candidates, err := g.filter.Select(ctx)
	if err != nil {
		return 0, err
	}
	keep := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		keep[c.NodeID] = true
	}
	var stale []string
	for _, id := range g.vectors.IDs() {
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := g.vectors.Delete(stale...); err != nil {
		return 0, err
	}
	if err := g.store.DeleteEmbeddings(ctx, stale); err != nil {
		return len(stale), err
	}
	return len(stale), nil
}

// buildText is the embedded representation of one node: up to two named
// ancestors for context, then the name.
func (g *Generator) buildText(ctx context.Context, c Candidate) (string, error) {
	parts := []string{c.Name}
	id := c.NodeID
	for i := 0; i < contextAncestors; i++ {
		node, err := g.store.GetNode(ctx, id)
		if err != nil {
			if sterr.IsKind(err, sterr.NodeNotFound) {
				break
			}
			return "", err
		}
		if node.ParentID == nil {
			break
		}
		id = *node.ParentID
		parent, err := g.store.GetNode(ctx, id)
		if err != nil {
			if sterr.IsKind(err, sterr.NodeNotFound) {
				break
			}
			return "", err
		}
		if parent.Name != nil && *parent.Name != "" {
			parts = append([]string{*parent.Name}, parts...)
		}
	}
	text := strings.Join(parts, " > ")
	if runes := []rune(text); len(runes) > maxTextLen {
		// Keep the tail: the node's own name is the part that matters.
		text = string(runes[len(runes)-maxTextLen:])
	}
	return text, nil
}

// TextHash is the change-detection hash over an embedded text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
