package schema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store), store
}

type tagSpec struct {
	id      string
	name    string
	parents []string
	fields  []fieldSpec
}

type fieldSpec struct {
	labelID string
	name    string
}

func seedTags(t *testing.T, store *sqlite.Store, specs ...tagSpec) {
	t.Helper()
	err := store.RunInTransaction(context.Background(), func(tx *sqlite.Tx) error {
		for _, spec := range specs {
			st := &types.Supertag{ID: spec.id, Name: spec.name, NormalizedName: types.NormalizeName(spec.name)}
			if err := tx.UpsertSupertag(st); err != nil {
				return err
			}
			for i, f := range spec.fields {
				if err := tx.UpsertSupertagField(&types.SupertagField{
					TagID:          spec.id,
					FieldLabelID:   f.labelID,
					Name:           f.name,
					FieldOrder:     i,
					NormalizedName: types.NormalizeName(f.name),
					DataType:       InferDataType(f.name),
				}); err != nil {
					return err
				}
			}
			for _, p := range spec.parents {
				if err := tx.InsertSupertagParent(spec.id, p); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed tags: %v", err)
	}
}

func TestGetSupertagByNameAndNormalized(t *testing.T) {
	svc, store := newTestService(t)
	seedTags(t, store, tagSpec{id: "tag1", name: "Daily Log", fields: []fieldSpec{{"f1", "Mood"}}})

	// Exact name.
	st, err := svc.GetSupertag(context.Background(), "Daily Log")
	if err != nil {
		t.Fatalf("GetSupertag exact: %v", err)
	}
	if st.ID != "tag1" || len(st.Fields) != 1 {
		t.Errorf("supertag = %+v", st)
	}

	// Normalized fallback: case and separators are forgiven.
	for _, name := range []string{"daily log", "DAILY-LOG", "daily_log"} {
		st, err := svc.GetSupertag(context.Background(), name)
		if err != nil {
			t.Errorf("GetSupertag(%q): %v", name, err)
			continue
		}
		if st.ID != "tag1" {
			t.Errorf("GetSupertag(%q) resolved %s", name, st.ID)
		}
	}
}

func TestGetSupertagMissing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetSupertag(context.Background(), "ghost")
	if !sterr.IsKind(err, sterr.TagNotFound) {
		t.Errorf("kind = %v, want TagNotFound", sterr.KindOf(err))
	}
}

func TestAllFieldsDiamond(t *testing.T) {
	svc, store := newTestService(t)
	// Diamond: bottom extends left and right, both extend top.
	// "Priority" is defined on top and redefined on left; the shallower
	// definition must win. "Status" exists only on bottom.
	seedTags(t, store,
		tagSpec{id: "top", name: "item", fields: []fieldSpec{{"fPrioTop", "Priority"}, {"fNotes", "Notes"}}},
		tagSpec{id: "left", name: "work", parents: []string{"top"}, fields: []fieldSpec{{"fPrioLeft", "Priority"}}},
		tagSpec{id: "right", name: "scheduled", parents: []string{"top"}, fields: []fieldSpec{{"fDue", "Due Date"}}},
		tagSpec{id: "bottom", name: "task", parents: []string{"left", "right"}, fields: []fieldSpec{{"fStatus", "Status"}}},
	)

	fields, err := svc.AllFields(context.Background(), "bottom")
	if err != nil {
		t.Fatalf("AllFields: %v", err)
	}
	byName := map[string]*types.SupertagField{}
	for _, f := range fields {
		byName[f.NormalizedName] = f
	}
	if len(fields) != 4 {
		t.Fatalf("fields = %d, want 4 (status, priority, due date, notes)", len(fields))
	}
	if f := byName["status"]; f == nil || f.Depth != 0 {
		t.Errorf("status = %+v, want own field at depth 0", f)
	}
	if f := byName["priority"]; f == nil || f.FieldLabelID != "fPrioLeft" || f.Depth != 1 {
		t.Errorf("priority = %+v, want the depth-1 redefinition to win", f)
	}
	if f := byName["notes"]; f == nil || f.Depth != 2 {
		t.Errorf("notes = %+v, want the top field at depth 2", f)
	}
}

func TestAllFieldsParentOrderIrrelevant(t *testing.T) {
	// The same partial order built with reversed edge insertion yields the
	// same field set.
	build := func(t *testing.T, reversed bool) map[string]string {
		svc, store := newTestService(t)
		parents := []string{"left", "right"}
		if reversed {
			parents = []string{"right", "left"}
		}
		seedTags(t, store,
			tagSpec{id: "top", name: "item", fields: []fieldSpec{{"fNotes", "Notes"}}},
			tagSpec{id: "left", name: "work", parents: []string{"top"}, fields: []fieldSpec{{"fA", "Owner"}}},
			tagSpec{id: "right", name: "scheduled", parents: []string{"top"}, fields: []fieldSpec{{"fB", "Due Date"}}},
			tagSpec{id: "bottom", name: "task", parents: parents},
		)
		fields, err := svc.AllFields(context.Background(), "bottom")
		if err != nil {
			t.Fatalf("AllFields: %v", err)
		}
		out := map[string]string{}
		for _, f := range fields {
			out[f.NormalizedName] = f.FieldLabelID
		}
		return out
	}

	a := build(t, false)
	b := build(t, true)
	if len(a) != len(b) {
		t.Fatalf("field sets differ: %v vs %v", a, b)
	}
	for k, v := range a {
		if b[k] != v {
			t.Errorf("field %s resolved %s vs %s", k, v, b[k])
		}
	}
}

func TestFieldByNormalizedName(t *testing.T) {
	svc, store := newTestService(t)
	seedTags(t, store,
		tagSpec{id: "parent1x", name: "item", fields: []fieldSpec{{"fDue", "Due Date"}}},
		tagSpec{id: "child1x", name: "task", parents: []string{"parent1x"}},
	)

	f, err := svc.FieldByNormalizedName(context.Background(), "child1x", "due date")
	if err != nil {
		t.Fatalf("FieldByNormalizedName: %v", err)
	}
	if f.FieldLabelID != "fDue" {
		t.Errorf("field = %+v", f)
	}

	_, err = svc.FieldByNormalizedName(context.Background(), "child1x", "nope")
	if !sterr.IsKind(err, sterr.FieldUnknown) {
		t.Errorf("kind = %v, want FieldUnknown", sterr.KindOf(err))
	}
}

func TestInferDataType(t *testing.T) {
	tests := []struct {
		name string
		want types.FieldDataType
	}{
		{"Due Date", types.FieldTypeDate},
		{"Start time", types.FieldTypeDate},
		{"Link", types.FieldTypeURL},
		{"Profile URL", types.FieldTypeURL},
		{"Amount", types.FieldTypeNumber},
		{"Word count", types.FieldTypeNumber},
		{"Status", types.FieldTypeReference},
		{"Category", types.FieldTypeReference},
		{"Is Done", types.FieldTypeCheckbox},
		{"Has Attachment", types.FieldTypeCheckbox},
		{"Completed", types.FieldTypeCheckbox},
		{"Notes", types.FieldTypeText},
		{"Phone number", types.FieldTypeText},
	}
	for _, tt := range tests {
		if got := InferDataType(tt.name); got != tt.want {
			t.Errorf("InferDataType(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
