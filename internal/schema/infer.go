package schema

import (
	"regexp"
	"strings"

	"github.com/tanatools/supertag/internal/types"
)

var boolPrefix = regexp.MustCompile(`^(is|has)\b`)

// InferDataType guesses a field's data type from its display name.
// The first matching rule wins; unmatched names are text.
func InferDataType(name string) types.FieldDataType {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "phone"):
		// Before the number rule: "phone number" is text.
		return types.FieldTypeText
	case strings.Contains(n, "date"), strings.Contains(n, "time"):
		return types.FieldTypeDate
	case strings.Contains(n, "url"), strings.Contains(n, "link"):
		return types.FieldTypeURL
	case strings.Contains(n, "count"), strings.Contains(n, "number"), strings.Contains(n, "amount"):
		return types.FieldTypeNumber
	case strings.Contains(n, "status"), strings.Contains(n, "type"), strings.Contains(n, "category"):
		return types.FieldTypeReference
	case boolPrefix.MatchString(n):
		return types.FieldTypeCheckbox
	case strings.Contains(n, "enabled"), strings.Contains(n, "completed"):
		return types.FieldTypeCheckbox
	default:
		return types.FieldTypeText
	}
}
