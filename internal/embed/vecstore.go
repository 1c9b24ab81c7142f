package embed

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// VecStore is a flat-file vector store: one fixed-width binary data file
// plus a JSON manifest mapping node id to slot. Deleted slots are reused.
// Search is an exact linear scan by cosine similarity, which is plenty for
// a personal knowledge base.
type VecStore struct {
	mu   sync.RWMutex
	dir  string
	dims int
	slot map[string]int
	free []int
	next int
}

const (
	manifestFile = "manifest.json"
	dataFile     = "vectors.dat"
)

type manifest struct {
	Dimensions int            `json:"dimensions"`
	Slots      map[string]int `json:"slots"`
	Free       []int          `json:"free"`
	Next       int            `json:"next"`
}

// OpenVecStore opens or creates a vector store in dir.
func OpenVecStore(dir string) (*VecStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	v := &VecStore{dir: dir, slot: make(map[string]int)}
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if os.IsNotExist(err) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vector manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse vector manifest: %w", err)
	}
	v.dims = m.Dimensions
	if m.Slots != nil {
		v.slot = m.Slots
	}
	v.free = m.Free
	v.next = m.Next
	return v, nil
}

// Dimensions returns the store's vector width, 0 before the first Put.
func (v *VecStore) Dimensions() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dims
}

// Count returns the number of stored vectors.
func (v *VecStore) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.slot)
}

// Put stores or replaces the vector for a node. The first Put fixes the
// store's dimensionality.
func (v *VecStore) Put(nodeID string, vec []float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dims == 0 {
		v.dims = len(vec)
	}
	if len(vec) != v.dims {
		return fmt.Errorf("vector for %s has %d dimensions, store has %d", nodeID, len(vec), v.dims)
	}
	slot, ok := v.slot[nodeID]
	if !ok {
		if n := len(v.free); n > 0 {
			slot = v.free[n-1]
			v.free = v.free[:n-1]
		} else {
			slot = v.next
			v.next++
		}
	}
	if err := v.writeSlot(slot, vec); err != nil {
		return err
	}
	v.slot[nodeID] = slot
	return v.saveManifest()
}

// Delete removes vectors for the given nodes. Missing ids are ignored.
func (v *VecStore) Delete(nodeIDs ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	changed := false
	for _, id := range nodeIDs {
		if slot, ok := v.slot[id]; ok {
			delete(v.slot, id)
			v.free = append(v.free, slot)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return v.saveManifest()
}

// Has reports whether a vector exists for the node.
func (v *VecStore) Has(nodeID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.slot[nodeID]
	return ok
}

// IDs returns the stored node ids, sorted.
func (v *VecStore) IDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.slot))
	for id := range v.slot {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Match is one KNN result.
type Match struct {
	NodeID string
	Score  float64 // cosine similarity, higher is closer
}

// Search returns the k nearest stored vectors by cosine similarity,
// ties broken by node id.
func (v *VecStore) Search(query []float32, k int) ([]Match, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.dims == 0 || len(v.slot) == 0 {
		return nil, nil
	}
	if len(query) != v.dims {
		return nil, fmt.Errorf("query has %d dimensions, store has %d", len(query), v.dims)
	}
	f, err := os.Open(filepath.Join(v.dir, dataFile))
	if err != nil {
		return nil, fmt.Errorf("open vector data: %w", err)
	}
	defer f.Close()

	qnorm := norm(query)
	matches := make([]Match, 0, len(v.slot))
	buf := make([]byte, 4*v.dims)
	vec := make([]float32, v.dims)
	for id, slot := range v.slot {
		if _, err := f.ReadAt(buf, int64(slot)*int64(len(buf))); err != nil {
			return nil, fmt.Errorf("read vector %s: %w", id, err)
		}
		decodeVector(buf, vec)
		matches = append(matches, Match{NodeID: id, Score: cosine(query, qnorm, vec)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].NodeID < matches[j].NodeID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (v *VecStore) writeSlot(slot int, vec []float32) error {
	f, err := os.OpenFile(filepath.Join(v.dir, dataFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open vector data: %w", err)
	}
	defer f.Close()
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	if _, err := f.WriteAt(buf, int64(slot)*int64(len(buf))); err != nil {
		return fmt.Errorf("write vector: %w", err)
	}
	return nil
}

// saveManifest writes the manifest with write-then-rename so readers never
// see a partial file. Caller holds the lock.
func (v *VecStore) saveManifest() error {
	m := manifest{Dimensions: v.dims, Slots: v.slot, Free: v.free, Next: v.next}
	data, err := json.Marshal(&m)
	if err != nil {
		return err
	}
	tmp := filepath.Join(v.dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write vector manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(v.dir, manifestFile))
}

func decodeVector(buf []byte, out []float32) {
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(q []float32, qnorm float64, v []float32) float64 {
	var dot, vn float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
		vn += float64(v[i]) * float64(v[i])
	}
	d := qnorm * math.Sqrt(vn)
	if d == 0 {
		return 0
	}
	return dot / d
}
