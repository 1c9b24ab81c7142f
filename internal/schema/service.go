// Package schema is the read-side view over the supertag catalog: name and
// id lookup, inheritance-aware field resolution, data-type inference, the
// stable catalog document, and write-payload building.
package schema

import (
	"context"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

// Service resolves supertags and fields against one workspace store.
// All methods are referentially transparent over a committed store state.
type Service struct {
	store *sqlite.Store
}

// NewService returns a schema service over the given store.
func NewService(store *sqlite.Store) *Service {
	return &Service{store: store}
}

// GetSupertag resolves by exact name first, then by normalized name, and
// returns the supertag with own fields and direct parent ids populated.
func (s *Service) GetSupertag(ctx context.Context, name string) (*types.Supertag, error) {
	st, err := s.store.SupertagByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st, err = s.store.SupertagByNormalizedName(ctx, types.NormalizeName(name))
		if err != nil {
			return nil, err
		}
	}
	if st == nil {
		return nil, sterr.New(sterr.TagNotFound, "supertag %q not found", name).
			WithSuggestion("run `st tags list` to see available supertags, or `st sync index` if the export changed")
	}
	return s.populate(ctx, st)
}

// GetSupertagByID resolves by tag id.
func (s *Service) GetSupertagByID(ctx context.Context, id string) (*types.Supertag, error) {
	st, err := s.store.SupertagByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, sterr.New(sterr.TagNotFound, "supertag id %q not found", id)
	}
	return s.populate(ctx, st)
}

// ListSupertags returns every supertag ordered by name, with parents
// populated (fields are loaded on demand via Fields/AllFields).
func (s *Service) ListSupertags(ctx context.Context) ([]*types.Supertag, error) {
	tags, err := s.store.ListSupertags(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range tags {
		if st.ParentIDs, err = s.store.SupertagParents(ctx, st.ID); err != nil {
			return nil, err
		}
	}
	return tags, nil
}

// SearchSupertags finds supertags by case-insensitive substring on name or
// normalized name.
func (s *Service) SearchSupertags(ctx context.Context, query string) ([]*types.Supertag, error) {
	return s.store.SearchSupertags(ctx, query)
}

// Fields returns a tag's own fields, ordered by field order.
func (s *Service) Fields(ctx context.Context, tagID string) ([]*types.SupertagField, error) {
	return s.store.SupertagFields(ctx, tagID)
}

// AllFields returns own plus inherited fields, deduplicated by normalized
// name. Traversal is breadth-first, so shallower (closer to the child)
// definitions win on conflict; diamonds are visited once.
func (s *Service) AllFields(ctx context.Context, tagID string) ([]*types.SupertagField, error) {
	var out []*types.SupertagField
	seenName := make(map[string]bool)
	seenTag := map[string]bool{tagID: true}

	level := []string{tagID}
	depth := 0
	for len(level) > 0 {
		var next []string
		for _, id := range level {
			fields, err := s.store.SupertagFields(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, f := range fields {
				if seenName[f.NormalizedName] {
					continue
				}
				seenName[f.NormalizedName] = true
				f.Depth = depth
				out = append(out, f)
			}
			parents, err := s.store.SupertagParents(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, p := range parents {
				if !seenTag[p] {
					seenTag[p] = true
					next = append(next, p)
				}
			}
		}
		level = next
		depth++
	}
	return out, nil
}

// FieldByNormalizedName resolves a field against the inheritance closure.
func (s *Service) FieldByNormalizedName(ctx context.Context, tagID, name string) (*types.SupertagField, error) {
	normalized := types.NormalizeName(name)
	fields, err := s.AllFields(ctx, tagID)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.NormalizedName == normalized {
			return f, nil
		}
	}
	return nil, sterr.New(sterr.FieldUnknown, "field %q not defined on supertag %s or its ancestors", name, tagID)
}

func (s *Service) populate(ctx context.Context, st *types.Supertag) (*types.Supertag, error) {
	var err error
	if st.Fields, err = s.store.SupertagFields(ctx, st.ID); err != nil {
		return nil, err
	}
	if st.ParentIDs, err = s.store.SupertagParents(ctx, st.ID); err != nil {
		return nil, err
	}
	return st, nil
}
