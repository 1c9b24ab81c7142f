package query

import (
	"context"
	"testing"

	"github.com/tanatools/supertag/internal/storage/sqlite"
)

// fragmentFixture builds three tagged parents with five untagged fragments
// under them: two under P1, two under P2, one under P3.
func fragmentFixture(t *testing.T) *sqlite.Store {
	t.Helper()
	tags := []seedTag{{id: "noteTag1", name: "note"}}
	nodes := []seedNode{
		{id: "P1", name: "Project Apollo", tags: []string{"noteTag1"}},
		{id: "P2", name: "Project Borealis", tags: []string{"noteTag1"}},
		{id: "P3", name: "Project Comet", tags: []string{"noteTag1"}},
		{id: "F1", name: "launch checklist", parent: "P1"},
		{id: "F2", name: "launch window", parent: "P1"},
		{id: "F3", name: "launch budget", parent: "P2"},
		{id: "F4", name: "launch risks", parent: "P2"},
		{id: "F5", name: "launch recap", parent: "P3"},
	}
	_, store := newTestEngine(t, tags, nodes)
	return store
}

func fragmentMatches() []sqlite.FTSMatch {
	return []sqlite.FTSMatch{
		{NodeID: "F1"}, {NodeID: "F2"}, {NodeID: "F3"}, {NodeID: "F4"}, {NodeID: "F5"},
	}
}

func TestResolveAncestorsTagged(t *testing.T) {
	store := fragmentFixture(t)
	hits, err := ResolveAncestors(context.Background(), store, fragmentMatches(), ResolveTagged)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3 unique ancestors", len(hits))
	}
	sum := 0
	for _, h := range hits {
		sum += h.MatchCount
	}
	if sum != 5 {
		t.Errorf("match counts sum to %d, want 5", sum)
	}
	// Count descending, ancestor id on ties.
	if hits[0].Node.ID != "P1" || hits[0].MatchCount != 2 {
		t.Errorf("hit 0 = %s x%d, want P1 x2", hits[0].Node.ID, hits[0].MatchCount)
	}
	if hits[1].Node.ID != "P2" || hits[1].MatchCount != 2 {
		t.Errorf("hit 1 = %s x%d, want P2 x2", hits[1].Node.ID, hits[1].MatchCount)
	}
	if hits[2].Node.ID != "P3" || hits[2].MatchCount != 1 {
		t.Errorf("hit 2 = %s x%d, want P3 x1", hits[2].Node.ID, hits[2].MatchCount)
	}
	if len(hits[0].Tags) != 1 || hits[0].Tags[0] != "note" {
		t.Errorf("tags = %v", hits[0].Tags)
	}
}

func TestResolveAncestorsRaw(t *testing.T) {
	store := fragmentFixture(t)
	hits, err := ResolveAncestors(context.Background(), store, fragmentMatches(), ResolveRaw)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(hits) != 5 {
		t.Errorf("hits = %d, want the raw matches", len(hits))
	}
	for _, h := range hits {
		if h.MatchCount != 1 {
			t.Errorf("%s count = %d", h.Node.ID, h.MatchCount)
		}
	}
}

func TestResolveAncestorsNamed(t *testing.T) {
	tags := []seedTag{{id: "noteTag1", name: "note"}}
	nodes := []seedNode{
		{id: "P1", name: "Named parent"},
		{id: "F1", parent: "P1"}, // unnamed fragment
	}
	_, store := newTestEngine(t, tags, nodes)

	hits, err := ResolveAncestors(context.Background(), store,
		[]sqlite.FTSMatch{{NodeID: "F1"}}, ResolveNamed)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(hits) != 1 || hits[0].Node.ID != "P1" {
		t.Errorf("hits = %+v, want the named parent", hits)
	}
}

func TestResolveAncestorsTaggedStartCounts(t *testing.T) {
	// A match that itself carries a tag resolves to itself.
	tags := []seedTag{{id: "noteTag1", name: "note"}}
	nodes := []seedNode{
		{id: "P1", name: "parent", tags: []string{"noteTag1"}},
		{id: "C1", name: "child", parent: "P1", tags: []string{"noteTag1"}},
	}
	_, store := newTestEngine(t, tags, nodes)

	hits, err := ResolveAncestors(context.Background(), store,
		[]sqlite.FTSMatch{{NodeID: "C1"}}, ResolveTagged)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(hits) != 1 || hits[0].Node.ID != "C1" {
		t.Errorf("hits = %+v, want the match itself", hits)
	}
}

func TestResolveAncestorsParentCycle(t *testing.T) {
	tags := []seedTag{{id: "noteTag1", name: "note"}}
	nodes := []seedNode{
		{id: "A1", parent: "B1"},
		{id: "B1", parent: "A1"},
	}
	_, store := newTestEngine(t, tags, nodes)

	hits, err := ResolveAncestors(context.Background(), store,
		[]sqlite.FTSMatch{{NodeID: "A1"}}, ResolveTagged)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none for a parent cycle", hits)
	}
}

func TestResolveAncestorsDanglingParent(t *testing.T) {
	tags := []seedTag{{id: "noteTag1", name: "note"}}
	nodes := []seedNode{{id: "F1", parent: "missing1"}}
	_, store := newTestEngine(t, tags, nodes)

	hits, err := ResolveAncestors(context.Background(), store,
		[]sqlite.FTSMatch{{NodeID: "F1"}}, ResolveTagged)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want the dangling walk dropped", hits)
	}
}
