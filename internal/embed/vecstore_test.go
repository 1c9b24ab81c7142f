package embed

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestVecStorePutAndSearch(t *testing.T) {
	dir := t.TempDir()
	v, err := OpenVecStore(dir)
	if err != nil {
		t.Fatalf("OpenVecStore: %v", err)
	}

	puts := map[string][]float32{
		"n1": {1, 0},
		"n2": {0, 1},
		"n3": {0.7, 0.7},
	}
	for id, vec := range puts {
		if err := v.Put(id, vec); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}
	if v.Count() != 3 || v.Dimensions() != 2 {
		t.Errorf("count = %d dims = %d", v.Count(), v.Dimensions())
	}

	matches, err := v.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 || matches[0].NodeID != "n1" || matches[1].NodeID != "n3" {
		t.Errorf("matches = %+v, want n1 then n3", matches)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("identical vector scored %v", matches[0].Score)
	}
}

func TestVecStoreReplace(t *testing.T) {
	v, err := OpenVecStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenVecStore: %v", err)
	}
	if err := v.Put("n1", []float32{1, 0}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := v.Put("n1", []float32{0, 1}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if v.Count() != 1 {
		t.Errorf("count = %d after replace", v.Count())
	}
	matches, err := v.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Score < 0.999 {
		t.Errorf("matches = %+v", matches)
	}
}

func TestVecStoreDimensionMismatch(t *testing.T) {
	v, err := OpenVecStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenVecStore: %v", err)
	}
	if err := v.Put("n1", []float32{1, 0, 0}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := v.Put("n2", []float32{1, 0}); err == nil {
		t.Error("accepted a narrower vector")
	}
	if _, err := v.Search([]float32{1, 0}, 1); err == nil {
		t.Error("accepted a narrower query")
	}
}

func TestVecStoreDeleteReusesSlot(t *testing.T) {
	dir := t.TempDir()
	v, err := OpenVecStore(dir)
	if err != nil {
		t.Fatalf("OpenVecStore: %v", err)
	}
	for _, id := range []string{"n1", "n2", "n3"} {
		if err := v.Put(id, []float32{1, 0}); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}
	if err := v.Delete("n2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if v.Has("n2") || v.Count() != 2 {
		t.Errorf("n2 still present, count = %d", v.Count())
	}
	if err := v.Put("n4", []float32{0, 1}); err != nil {
		t.Fatalf("Put(n4): %v", err)
	}

	// The freed slot is reused, so the slot high-water mark stays at 3.
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m struct {
		Next  int            `json:"next"`
		Slots map[string]int `json:"slots"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if m.Next != 3 {
		t.Errorf("next = %d, want 3", m.Next)
	}
	if m.Slots["n4"] != 1 {
		t.Errorf("n4 slot = %d, want the freed slot 1", m.Slots["n4"])
	}
}

func TestVecStoreDeleteMissingIsNoop(t *testing.T) {
	v, err := OpenVecStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenVecStore: %v", err)
	}
	if err := v.Delete("ghost"); err != nil {
		t.Errorf("Delete of a missing id: %v", err)
	}
}

func TestVecStorePersistence(t *testing.T) {
	dir := t.TempDir()
	v, err := OpenVecStore(dir)
	if err != nil {
		t.Fatalf("OpenVecStore: %v", err)
	}
	if err := v.Put("n1", []float32{1, 0}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := v.Put("n2", []float32{0, 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := OpenVecStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Count() != 2 || reopened.Dimensions() != 2 {
		t.Fatalf("reopened count = %d dims = %d", reopened.Count(), reopened.Dimensions())
	}
	matches, err := reopened.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(matches) != 1 || matches[0].NodeID != "n2" {
		t.Errorf("matches = %+v, want n2", matches)
	}
}

func TestVecStoreEmptySearch(t *testing.T) {
	v, err := OpenVecStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenVecStore: %v", err)
	}
	matches, err := v.Search([]float32{1}, 5)
	if err != nil || matches != nil {
		t.Errorf("empty search = %v, %v", matches, err)
	}
}
