package schema

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/types"
)

// PayloadNode is the write-sink payload shape. The same node type covers the
// top-level node, field wrappers (AttributeID set) and typed value children.
type PayloadNode struct {
	Name        string          `json:"name,omitempty"`
	ID          string          `json:"id,omitempty"`
	DataType    string          `json:"data_type,omitempty"`
	AttributeID string          `json:"attribute_id,omitempty"`
	Supertags   []PayloadTagRef `json:"supertags,omitempty"`
	Children    []*PayloadNode  `json:"children,omitempty"`
}

// PayloadTagRef references a supertag by id.
type PayloadTagRef struct {
	ID string `json:"id"`
}

// nodeIDPattern decides whether a reference value is a node id rather than
// a display name.
var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,}$`)

// SplitTags splits a comma-separated supertag list, trimming whitespace.
func SplitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// BuildPayload produces a write-sink payload for a new node carrying the
// given supertags and field values. Unknown field names are dropped rather
// than failing; unknown supertags fail with TagNotFound.
func (s *Service) BuildPayload(ctx context.Context, tagNames []string, name string, fields map[string]interface{}) (*PayloadNode, error) {
	var tags []*types.Supertag
	seenTag := make(map[string]bool)
	for _, tn := range tagNames {
		st, err := s.GetSupertag(ctx, tn)
		if err != nil {
			return nil, err
		}
		if seenTag[st.ID] {
			continue
		}
		seenTag[st.ID] = true
		tags = append(tags, st)
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one supertag is required")
	}

	// Union of every tag's inheritance closure, first occurrence wins.
	var union []*types.SupertagField
	seenAttr := make(map[string]bool)
	for _, st := range tags {
		all, err := s.AllFields(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range all {
			if seenAttr[f.FieldLabelID] {
				continue
			}
			seenAttr[f.FieldLabelID] = true
			union = append(union, f)
		}
	}

	payload := &PayloadNode{Name: name}
	for _, st := range tags {
		payload.Supertags = append(payload.Supertags, PayloadTagRef{ID: st.ID})
	}

	// Field wrappers follow union order so the payload is deterministic
	// regardless of map iteration.
	provided := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		provided[types.NormalizeName(k)] = v
	}
	for _, f := range union {
		value, ok := provided[f.NormalizedName]
		if !ok {
			continue
		}
		delete(provided, f.NormalizedName)
		children := valueChildren(f, value)
		if len(children) == 0 {
			continue
		}
		payload.Children = append(payload.Children, &PayloadNode{
			AttributeID: f.FieldLabelID,
			Children:    children,
		})
	}
	for k := range provided {
		debug.Logf("payload: field %q not defined on %v, dropped", k, tagNames)
	}
	return payload, nil
}

// valueChildren builds the typed value children for one field. Arrays fan
// out to one child per element; empty and whitespace-only values are
// skipped.
func valueChildren(f *types.SupertagField, value interface{}) []*PayloadNode {
	if arr, ok := value.([]interface{}); ok {
		var out []*PayloadNode
		for _, v := range arr {
			if child := valueChild(f, v); child != nil {
				out = append(out, child)
			}
		}
		return out
	}
	if arr, ok := value.([]string); ok {
		var out []*PayloadNode
		for _, v := range arr {
			if child := valueChild(f, v); child != nil {
				out = append(out, child)
			}
		}
		return out
	}
	if child := valueChild(f, value); child != nil {
		return []*PayloadNode{child}
	}
	return nil
}

func valueChild(f *types.SupertagField, value interface{}) *PayloadNode {
	if b, ok := value.(bool); ok && f.DataType == types.FieldTypeCheckbox {
		return &PayloadNode{Name: strconv.FormatBool(b)}
	}
	text := stringify(value)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	switch f.DataType {
	case types.FieldTypeDate:
		return &PayloadNode{DataType: "date", Name: text}
	case types.FieldTypeURL:
		return &PayloadNode{DataType: "url", Name: text}
	case types.FieldTypeReference:
		if nodeIDPattern.MatchString(text) {
			return &PayloadNode{ID: text}
		}
		return &PayloadNode{Name: text}
	case types.FieldTypeCheckbox:
		if truthy(text) {
			return &PayloadNode{Name: "true"}
		}
		return &PayloadNode{Name: "false"}
	default:
		// number and text both carry the stringified value.
		return &PayloadNode{Name: text}
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "checked":
		return true
	}
	return false
}
