package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

// CatalogVersion is the catalog document format version.
const CatalogVersion = 1

// CatalogDocument is the stable serialized form of the supertag catalog.
// Field order here is the wire key order; absent and null are distinct, so
// optional values are pointers with omitempty.
type CatalogDocument struct {
	Version   int               `json:"version"`
	Supertags []*CatalogSupertag `json:"supertags"`
}

// CatalogSupertag is one supertag in the catalog document.
type CatalogSupertag struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	NormalizedName string          `json:"normalized_name"`
	Description    *string         `json:"description,omitempty"`
	Color          *string         `json:"color,omitempty"`
	Extends        []string        `json:"extends,omitempty"`
	Fields         []*CatalogField `json:"fields"`
}

// CatalogField is one field definition in the catalog document.
type CatalogField struct {
	AttributeID    string  `json:"attribute_id"`
	Name           string  `json:"name"`
	NormalizedName string  `json:"normalized_name"`
	Description    *string `json:"description,omitempty"`
	DataType       *string `json:"data_type,omitempty"`
}

// ToCatalogDocument exports the supertag tables as a stable document.
// Supertags are ordered by name, fields by field order, extends sorted.
func (s *Service) ToCatalogDocument(ctx context.Context) (*CatalogDocument, error) {
	tags, err := s.ListSupertags(ctx)
	if err != nil {
		return nil, err
	}
	doc := &CatalogDocument{Version: CatalogVersion, Supertags: make([]*CatalogSupertag, 0, len(tags))}
	for _, st := range tags {
		cs := &CatalogSupertag{
			ID:             st.ID,
			Name:           st.Name,
			NormalizedName: st.NormalizedName,
			Description:    st.Description,
			Color:          st.Color,
			Fields:         []*CatalogField{},
		}
		if len(st.ParentIDs) > 0 {
			cs.Extends = append([]string(nil), st.ParentIDs...)
			sort.Strings(cs.Extends)
		}
		fields, err := s.Fields(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			cf := &CatalogField{
				AttributeID:    f.FieldLabelID,
				Name:           f.Name,
				NormalizedName: f.NormalizedName,
				Description:    f.Description,
			}
			if f.DataType != "" {
				dt := string(f.DataType)
				cf.DataType = &dt
			}
			cs.Fields = append(cs.Fields, cf)
		}
		doc.Supertags = append(doc.Supertags, cs)
	}
	return doc, nil
}

// FromCatalogDocument loads a catalog document back into the supertag
// tables, replacing the current catalog. Round-trips with ToCatalogDocument
// over the catalog subset.
func (s *Service) FromCatalogDocument(ctx context.Context, doc *CatalogDocument) error {
	if doc == nil {
		return sterr.New(sterr.InvalidFormat, "nil catalog document")
	}
	if doc.Version != CatalogVersion {
		return sterr.New(sterr.InvalidFormat, "unsupported catalog version %d", doc.Version)
	}
	if cycle := findExtendsCycle(doc); cycle != "" {
		return sterr.New(sterr.CycleDetected, "supertag %s participates in an inheritance cycle", cycle)
	}
	return s.store.RunInTransaction(ctx, func(tx *sqlite.Tx) error {
		if err := tx.ClearSupertagCatalog(); err != nil {
			return err
		}
		for _, cs := range doc.Supertags {
			st := &types.Supertag{
				ID:             cs.ID,
				Name:           cs.Name,
				NormalizedName: cs.NormalizedName,
				Description:    cs.Description,
				Color:          cs.Color,
			}
			if err := tx.UpsertSupertag(st); err != nil {
				return err
			}
			for i, cf := range cs.Fields {
				f := &types.SupertagField{
					TagID:          cs.ID,
					Name:           cf.Name,
					FieldLabelID:   cf.AttributeID,
					FieldOrder:     i,
					NormalizedName: cf.NormalizedName,
					Description:    cf.Description,
				}
				if cf.DataType != nil {
					f.DataType = types.FieldDataType(*cf.DataType)
				}
				if err := tx.UpsertSupertagField(f); err != nil {
					return err
				}
			}
			for _, parent := range cs.Extends {
				if err := tx.InsertSupertagParent(cs.ID, parent); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// findExtendsCycle returns the id of a supertag on an inheritance cycle, or
// "" when the extends graph is acyclic. The catalog is rejected whole so the
// stored graph stays unchanged.
func findExtendsCycle(doc *CatalogDocument) string {
	parents := make(map[string][]string, len(doc.Supertags))
	for _, cs := range doc.Supertags {
		parents[cs.ID] = cs.Extends
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(parents))
	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, p := range parents[id] {
			if hit := visit(p); hit != "" {
				return hit
			}
		}
		state[id] = done
		return ""
	}
	for _, cs := range doc.Supertags {
		if hit := visit(cs.ID); hit != "" {
			return hit
		}
	}
	return ""
}

// WriteCatalogFile serializes the catalog document to path atomically
// (write temp, then rename) so concurrent readers never see a partial file.
func (s *Service) WriteCatalogFile(ctx context.Context, path string) error {
	doc, err := s.ToCatalogDocument(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename catalog: %w", err)
	}
	return nil
}

// ReadCatalogFile parses a catalog document from disk.
func ReadCatalogFile(path string) (*CatalogDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc CatalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, sterr.Wrap(sterr.InvalidFormat, err, "parse catalog %s", path)
	}
	return &doc, nil
}
