package embed

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

func newEmbedStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type embedSeed struct {
	id      string
	name    string
	parent  string
	docType string
	raw     string
}

func seedEmbedNodes(t *testing.T, store *sqlite.Store, seeds ...embedSeed) {
	t.Helper()
	var nodes []*types.Node
	var sigs []string
	for _, s := range seeds {
		n := &types.Node{ID: s.id, DocType: s.docType}
		if s.name != "" {
			name := s.name
			n.Name = &name
		}
		if s.parent != "" {
			parent := s.parent
			n.ParentID = &parent
		}
		if s.raw != "" {
			n.Raw = json.RawMessage(s.raw)
		}
		nodes = append(nodes, n)
		sigs = append(sigs, "sig-"+s.id)
	}
	err := store.RunInTransaction(context.Background(), func(tx *sqlite.Tx) error {
		return tx.InsertNodes(nodes, sigs)
	})
	if err != nil {
		t.Fatalf("seed nodes: %v", err)
	}
}

func selectIDs(t *testing.T, f *Filter) map[string]bool {
	t.Helper()
	cands, err := f.Select(context.Background())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	out := make(map[string]bool, len(cands))
	for _, c := range cands {
		out[c.NodeID] = true
	}
	return out
}

func TestFilterSelect(t *testing.T) {
	store := newEmbedStore(t)
	seedEmbedNodes(t, store,
		embedSeed{id: "good1", name: "Budget planning for spring"},
		embedSeed{id: "short1", name: "ab"},
		embedSeed{id: "entity1", name: "AI", raw: `{"props":{"flags":1}}`},
		embedSeed{id: "entity2", name: "Acme research notes", raw: `{"props":{"_entity_override":true}}`},
		embedSeed{id: "tuple1", name: "carrier", docType: types.DocTypeTuple},
		embedSeed{id: "tagdef1", name: "task", docType: types.DocTypeTagDef},
		embedSeed{id: "epoch1", name: "1970-01-01 import artifact"},
		embedSeed{id: "reflike1", name: "see [[abc12345]] for details"},
		embedSeed{id: "unnamed1"},
	)

	got := selectIDs(t, NewFilter(store, DefaultFilterOptions()))
	want := map[string]bool{"good1": true, "entity1": true, "entity2": true}
	for id := range want {
		if !got[id] {
			t.Errorf("missing %s", id)
		}
	}
	for _, id := range []string{"short1", "tuple1", "tagdef1", "epoch1", "reflike1", "unnamed1"} {
		if got[id] {
			t.Errorf("%s selected, want excluded", id)
		}
	}
}

func TestFilterEntitiesOnlyIsSubset(t *testing.T) {
	store := newEmbedStore(t)
	seedEmbedNodes(t, store,
		embedSeed{id: "plain1", name: "Quarterly report draft"},
		embedSeed{id: "entity1", name: "Zurich", raw: `{"props":{"flags":3}}`},
		embedSeed{id: "plain2", name: "Groceries list"},
	)

	all := selectIDs(t, NewFilter(store, DefaultFilterOptions()))
	entities := selectIDs(t, NewFilter(store, FilterOptions{MinLength: 3, EntitiesOnly: true}))

	for id := range entities {
		if !all[id] {
			t.Errorf("entities-only selected %s that the default filter excludes", id)
		}
	}
	if len(entities) != 1 || !entities["entity1"] {
		t.Errorf("entities = %v, want only entity1", entities)
	}
}

func TestFilterMinLength(t *testing.T) {
	store := newEmbedStore(t)
	seedEmbedNodes(t, store,
		embedSeed{id: "n1", name: "abcd"},
		embedSeed{id: "n2", name: "abc"},
	)
	got := selectIDs(t, NewFilter(store, FilterOptions{MinLength: 4}))
	if !got["n1"] || got["n2"] {
		t.Errorf("selected = %v, want only n1 at min length 4", got)
	}
}
