// Package indexer projects note-graph snapshots into the relational + FTS
// store and re-derives the supertag catalog, atomically and incrementally.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/snapshot"
	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

// Indexer ingests snapshots into one workspace store.
type Indexer struct {
	store *sqlite.Store
}

// New returns an Indexer over the given store.
func New(store *sqlite.Store) *Indexer {
	return &Indexer{store: store}
}

// InitializeSchema applies forward-only migrations to the open store.
// Idempotent; also runs implicitly when the store is opened.
func (ix *Indexer) InitializeSchema() error {
	return sqlite.RunMigrations(ix.store.UnderlyingDB())
}

// inlineRef matches reference-syntax fragments ("[[nodeid]]") inside names.
var inlineRef = regexp.MustCompile(`\[\[([A-Za-z0-9_-]+)\]\]`)

// IndexSnapshot streams the snapshot at path into the store inside a single
// write transaction. The store ends at either the prior state or the new
// state, never partway.
func (ix *Indexer) IndexSnapshot(ctx context.Context, path string) (*types.IndexReport, error) {
	start := time.Now()

	reader, err := snapshot.Open(path)
	if err != nil {
		return nil, err
	}

	release, err := ix.store.AcquireWriteLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	proj, err := project(ctx, reader)
	if err != nil {
		return nil, err
	}

	restore, err := ix.store.BulkMode(ctx)
	if err != nil {
		return nil, err
	}
	defer restore()

	report := &types.IndexReport{
		ExportFile:     filepath.Base(path),
		SkippedRecords: proj.skipped,
	}

	err = ix.store.RunInTransaction(ctx, func(tx *sqlite.Tx) error {
		existing, err := tx.NodeSignatures()
		if err != nil {
			return err
		}

		var inserts []*types.Node
		var insertSigs []string
		for i, id := range proj.order {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			st := proj.nodes[id]
			old, ok := existing[id]
			switch {
			case !ok:
				report.Added++
				inserts = append(inserts, st.node)
				insertSigs = append(insertSigs, st.sig)
			case old != st.sig:
				report.Modified++
				if err := tx.UpdateNode(st.node, st.sig); err != nil {
					return err
				}
			}
		}
		if err := tx.InsertNodes(inserts, insertSigs); err != nil {
			return err
		}

		var deletes []string
		for id := range existing {
			if _, ok := proj.nodes[id]; !ok {
				deletes = append(deletes, id)
			}
		}
		sort.Strings(deletes)
		report.Deleted = len(deletes)
		if err := tx.DeleteNodes(deletes); err != nil {
			return err
		}

		if err := writeDerived(tx, proj); err != nil {
			return err
		}

		if err := tx.RebuildFTS(); err != nil {
			return err
		}

		if err := tx.SetMetadata(sqlite.MetaLastExportFile, report.ExportFile); err != nil {
			return err
		}
		if err := tx.SetMetadata(sqlite.MetaLastIndexedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}

		report.NodesTotal, report.SupertagsTotal, report.FieldsTotal, report.RefsTotal, report.TagAppsTotal, err = tx.Counts()
		return err
	})
	if err != nil {
		return nil, err
	}

	report.DurationMS = time.Since(start).Milliseconds()
	return report, nil
}

// staged is one snapshot record after projection.
type staged struct {
	node *types.Node
	sig  string
}

// projection is everything staged from one snapshot stream.
type projection struct {
	nodes   map[string]*staged
	order   []string // stream order, for deterministic application
	skipped int

	refs        []types.Reference
	tagApps     []types.TagApplication
	fieldValues []types.FieldValue
	fieldNames  map[string]string // label id -> display name

	supertags   map[string]*types.Supertag
	tagOrder    []string
	tagFields   map[string][]*types.SupertagField
	parentEdges [][2]string // child, parent
	cyclesSkipped int
}

func (p *projection) nameOf(id string) string {
	if st, ok := p.nodes[id]; ok {
		return st.node.NameOrEmpty()
	}
	return ""
}

func (p *projection) docTypeOf(id string) string {
	if st, ok := p.nodes[id]; ok {
		return st.node.DocType
	}
	return ""
}

// project streams the snapshot once and stages typed rows. Malformed records
// are skipped and counted; only top-level malformation aborts.
func project(ctx context.Context, reader *snapshot.Reader) (*projection, error) {
	proj := &projection{
		nodes:      make(map[string]*staged),
		fieldNames: make(map[string]string),
		supertags:  make(map[string]*types.Supertag),
		tagFields:  make(map[string][]*types.SupertagField),
	}

	n := 0
	err := reader.Each(func(rec *snapshot.Record) error {
		n++
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if rec.ID == "" {
			proj.skipped++
			return nil
		}
		if _, dup := proj.nodes[rec.ID]; dup {
			proj.skipped++
			return nil
		}

		node := &types.Node{
			ID:       rec.ID,
			DocType:  rec.DocType(),
			Created:  rec.Created(),
			Updated:  rec.Updated(),
			DoneAt:   rec.DoneAt(),
			Children: rec.Children,
		}
		if name, ok := rec.Name(); ok {
			node.Name = &name
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			proj.skipped++
			debug.Logf("skip record %s: %v", rec.ID, err)
			return nil
		}
		node.Raw = raw

		proj.nodes[rec.ID] = &staged{node: node}
		proj.order = append(proj.order, rec.ID)

		if node.DocType == types.DocTypeTagDef {
			name := node.NameOrEmpty()
			st := &types.Supertag{
				ID:             rec.ID,
				Name:           name,
				NormalizedName: types.NormalizeName(name),
			}
			if d := rec.Description(); d != "" {
				st.Description = &d
			}
			if c := rec.Color(); c != "" {
				st.Color = &c
			}
			proj.supertags[rec.ID] = st
			proj.tagOrder = append(proj.tagOrder, rec.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Resolve parents from children arrays. A child listed by two parents
	// keeps the first in stream order; ids absent from the snapshot are
	// dangling and stay parentless.
	for _, id := range proj.order {
		for _, childID := range proj.nodes[id].node.Children {
			if child, ok := proj.nodes[childID]; ok && child.node.ParentID == nil && childID != id {
				parent := id
				child.node.ParentID = &parent
			}
		}
	}

	// Classify tuples, tag definitions and field labels.
	for _, id := range proj.order {
		node := proj.nodes[id].node
		switch node.DocType {
		case types.DocTypeTuple:
			projectTuple(proj, node)
		case types.DocTypeTagDef:
			projectTagDef(proj, node)
		case types.DocTypeAttrDef:
			if name := node.NameOrEmpty(); name != "" {
				proj.fieldNames[id] = name
			}
		}
	}

	// Inline references embedded in names.
	for _, id := range proj.order {
		name := proj.nameOf(id)
		if !strings.Contains(name, "[[") {
			continue
		}
		for _, m := range inlineRef.FindAllStringSubmatch(name, -1) {
			if _, ok := proj.nodes[m[1]]; ok {
				proj.refs = append(proj.refs, types.Reference{FromNode: id, ToNode: m[1], RefType: "inline"})
			}
		}
	}

	// Reject inheritance edges that would close a cycle, in staged order so
	// the survivor set is deterministic.
	proj.parentEdges, proj.cyclesSkipped = dropCycleEdges(proj.parentEdges)

	// Signatures, computed after parent resolution.
	for _, id := range proj.order {
		proj.nodes[id].sig = signature(proj.nodes[id].node)
	}

	return proj, nil
}

// projectTuple stages one carrier tuple. First child a tag definition makes
// it a tag application; first child a field label makes it field values.
// Anything else is left as a plain node.
func projectTuple(proj *projection, tuple *types.Node) {
	if len(tuple.Children) == 0 || tuple.ParentID == nil {
		return
	}
	dataNode := *tuple.ParentID
	head := tuple.Children[0]

	switch proj.docTypeOf(head) {
	case types.DocTypeTagDef:
		proj.tagApps = append(proj.tagApps, types.TagApplication{
			TupleNodeID: tuple.ID,
			DataNodeID:  dataNode,
			TagID:       head,
			TagName:     proj.nameOf(head),
		})
		proj.refs = append(proj.refs, types.Reference{FromNode: dataNode, ToNode: head, RefType: types.RefTypeTag})

	case types.DocTypeAttrDef:
		fieldName := proj.nameOf(head)
		order := 0
		for _, valueID := range tuple.Children[1:] {
			text := proj.nameOf(valueID)
			// Empty or whitespace-only values are skipped by design.
			if strings.TrimSpace(text) == "" {
				continue
			}
			proj.fieldValues = append(proj.fieldValues, types.FieldValue{
				TupleID:     tuple.ID,
				ParentID:    dataNode,
				FieldDefID:  head,
				FieldName:   fieldName,
				ValueNodeID: valueID,
				ValueText:   text,
				ValueOrder:  order,
			})
			proj.refs = append(proj.refs, types.Reference{FromNode: dataNode, ToNode: valueID, RefType: types.RefTypeField})
			order++
		}
	}
}

// projectTagDef stages a supertag's field definitions and inheritance edges
// from its child tuples.
func projectTagDef(proj *projection, tagDef *types.Node) {
	fieldOrder := 0
	for _, childID := range tagDef.Children {
		child, ok := proj.nodes[childID]
		if !ok || child.node.DocType != types.DocTypeTuple || len(child.node.Children) == 0 {
			continue
		}
		head := child.node.Children[0]
		switch proj.docTypeOf(head) {
		case types.DocTypeAttrDef:
			name := proj.nameOf(head)
			f := &types.SupertagField{
				TagID:          tagDef.ID,
				Name:           name,
				FieldLabelID:   head,
				FieldOrder:     fieldOrder,
				NormalizedName: types.NormalizeName(name),
				DataType:       schema.InferDataType(name),
			}
			if len(child.node.Children) > 1 {
				dflt := child.node.Children[1]
				f.DefaultValueID = &dflt
			}
			proj.tagFields[tagDef.ID] = append(proj.tagFields[tagDef.ID], f)
			fieldOrder++
		case types.DocTypeTagDef:
			proj.parentEdges = append(proj.parentEdges, [2]string{tagDef.ID, head})
		}
	}
}

// dropCycleEdges accepts edges one at a time, skipping any edge that would
// close a cycle in the accepted set.
func dropCycleEdges(edges [][2]string) ([][2]string, int) {
	parents := make(map[string][]string)
	reaches := func(from, target string) bool {
		seen := map[string]bool{}
		stack := []string{from}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if cur == target {
				return true
			}
			if seen[cur] {
				continue
			}
			seen[cur] = true
			stack = append(stack, parents[cur]...)
		}
		return false
	}

	var kept [][2]string
	skipped := 0
	for _, e := range edges {
		child, parent := e[0], e[1]
		if child == parent || reaches(parent, child) {
			skipped++
			debug.Logf("supertag inheritance edge %s -> %s closes a cycle, skipped", child, parent)
			continue
		}
		parents[child] = append(parents[child], parent)
		kept = append(kept, e)
	}
	return kept, skipped
}

// writeDerived rewrites every derived table from the projection.
func writeDerived(tx *sqlite.Tx, proj *projection) error {
	if err := tx.ClearDerived(); err != nil {
		return err
	}
	if err := tx.InsertRefs(proj.refs); err != nil {
		return err
	}
	if err := tx.InsertTagApps(proj.tagApps); err != nil {
		return err
	}
	if err := tx.InsertFieldValues(proj.fieldValues); err != nil {
		return err
	}

	labelIDs := make([]string, 0, len(proj.fieldNames))
	for id := range proj.fieldNames {
		labelIDs = append(labelIDs, id)
	}
	sort.Strings(labelIDs)
	for _, id := range labelIDs {
		name := proj.fieldNames[id]
		if err := tx.UpsertFieldName(id, name, types.NormalizeName(name)); err != nil {
			return err
		}
	}

	for _, tagID := range proj.tagOrder {
		if err := tx.UpsertSupertag(proj.supertags[tagID]); err != nil {
			return err
		}
		for _, f := range proj.tagFields[tagID] {
			if err := tx.UpsertSupertagField(f); err != nil {
				return err
			}
		}
	}
	for _, e := range proj.parentEdges {
		if err := tx.InsertSupertagParent(e[0], e[1]); err != nil {
			return err
		}
	}
	return nil
}

func signature(n *types.Node) string {
	h := sha256.New()
	h.Write([]byte(n.NameOrEmpty()))
	h.Write([]byte{0})
	if n.ParentID != nil {
		h.Write([]byte(*n.ParentID))
	}
	h.Write([]byte{0})
	h.Write([]byte(n.DocType))
	h.Write([]byte{0})
	for _, c := range n.Children {
		h.Write([]byte(c))
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
