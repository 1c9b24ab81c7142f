package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tanatools/supertag/internal/sterr"
)

func strptr(s string) *string { return &s }

func catalogJSON(t *testing.T, doc *CatalogDocument) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	return string(data)
}

func sampleCatalog() *CatalogDocument {
	return &CatalogDocument{
		Version: CatalogVersion,
		Supertags: []*CatalogSupertag{
			{
				ID: "itemTag1", Name: "item", NormalizedName: "item",
				Description: strptr("base for everything"),
				Fields: []*CatalogField{
					{AttributeID: "fNotes", Name: "Notes", NormalizedName: "notes", DataType: strptr("text")},
				},
			},
			{
				ID: "taskTag1", Name: "task", NormalizedName: "task",
				Color:   strptr("blue"),
				Extends: []string{"itemTag1"},
				Fields: []*CatalogField{
					{AttributeID: "fStatus", Name: "Status", NormalizedName: "status", DataType: strptr("reference")},
					{AttributeID: "fDue", Name: "Due Date", NormalizedName: "duedate", DataType: strptr("date")},
				},
			},
		},
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	in := sampleCatalog()

	if err := svc.FromCatalogDocument(context.Background(), in); err != nil {
		t.Fatalf("FromCatalogDocument: %v", err)
	}
	out, err := svc.ToCatalogDocument(context.Background())
	if err != nil {
		t.Fatalf("ToCatalogDocument: %v", err)
	}
	if got, want := catalogJSON(t, out), catalogJSON(t, in); got != want {
		t.Errorf("round trip drifted:\n got %s\nwant %s", got, want)
	}
}

func TestFromCatalogDocumentReplaces(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.FromCatalogDocument(context.Background(), sampleCatalog()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	second := &CatalogDocument{Version: CatalogVersion, Supertags: []*CatalogSupertag{
		{ID: "soloTag1", Name: "solo", NormalizedName: "solo", Fields: []*CatalogField{}},
	}}
	if err := svc.FromCatalogDocument(context.Background(), second); err != nil {
		t.Fatalf("second load: %v", err)
	}
	tags, err := svc.ListSupertags(context.Background())
	if err != nil {
		t.Fatalf("ListSupertags: %v", err)
	}
	if len(tags) != 1 || tags[0].ID != "soloTag1" {
		t.Errorf("tags = %+v, want only solo", tags)
	}
}

func TestFromCatalogDocumentRejectsCycle(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.FromCatalogDocument(context.Background(), sampleCatalog()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cyclic := &CatalogDocument{Version: CatalogVersion, Supertags: []*CatalogSupertag{
		{ID: "aTag1", Name: "a", NormalizedName: "a", Extends: []string{"bTag1"}, Fields: []*CatalogField{}},
		{ID: "bTag1", Name: "b", NormalizedName: "b", Extends: []string{"aTag1"}, Fields: []*CatalogField{}},
	}}
	err := svc.FromCatalogDocument(context.Background(), cyclic)
	if !sterr.IsKind(err, sterr.CycleDetected) {
		t.Fatalf("kind = %v, want CycleDetected", sterr.KindOf(err))
	}

	// The stored catalog is untouched by the rejected import.
	out, err := svc.ToCatalogDocument(context.Background())
	if err != nil {
		t.Fatalf("ToCatalogDocument: %v", err)
	}
	if got, want := catalogJSON(t, out), catalogJSON(t, sampleCatalog()); got != want {
		t.Errorf("catalog changed after rejected import:\n got %s\nwant %s", got, want)
	}
}

func TestFromCatalogDocumentRejectsSelfCycle(t *testing.T) {
	svc, _ := newTestService(t)
	doc := &CatalogDocument{Version: CatalogVersion, Supertags: []*CatalogSupertag{
		{ID: "aTag1", Name: "a", NormalizedName: "a", Extends: []string{"aTag1"}, Fields: []*CatalogField{}},
	}}
	if err := svc.FromCatalogDocument(context.Background(), doc); !sterr.IsKind(err, sterr.CycleDetected) {
		t.Errorf("kind = %v, want CycleDetected", sterr.KindOf(err))
	}
}

func TestFromCatalogDocumentRejectsBadVersion(t *testing.T) {
	svc, _ := newTestService(t)
	doc := &CatalogDocument{Version: 99}
	if err := svc.FromCatalogDocument(context.Background(), doc); !sterr.IsKind(err, sterr.InvalidFormat) {
		t.Errorf("kind = %v, want InvalidFormat", sterr.KindOf(err))
	}
	if err := svc.FromCatalogDocument(context.Background(), nil); !sterr.IsKind(err, sterr.InvalidFormat) {
		t.Errorf("nil doc kind = %v, want InvalidFormat", sterr.KindOf(err))
	}
}

func TestCatalogFileRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.FromCatalogDocument(context.Background(), sampleCatalog()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "schema.json")
	if err := svc.WriteCatalogFile(context.Background(), path); err != nil {
		t.Fatalf("WriteCatalogFile: %v", err)
	}
	doc, err := ReadCatalogFile(path)
	if err != nil {
		t.Fatalf("ReadCatalogFile: %v", err)
	}
	if got, want := catalogJSON(t, doc), catalogJSON(t, sampleCatalog()); got != want {
		t.Errorf("file round trip drifted:\n got %s\nwant %s", got, want)
	}
}

func TestReadCatalogFileBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadCatalogFile(path); !sterr.IsKind(err, sterr.InvalidFormat) {
		t.Errorf("kind = %v, want InvalidFormat", sterr.KindOf(err))
	}
}
