// Package types defines the core data types shared across supertag packages.
package types

import "encoding/json"

// FieldDataType is the closed set of inferred field data types.
type FieldDataType string

const (
	FieldTypeText      FieldDataType = "text"
	FieldTypeDate      FieldDataType = "date"
	FieldTypeReference FieldDataType = "reference"
	FieldTypeURL       FieldDataType = "url"
	FieldTypeNumber    FieldDataType = "number"
	FieldTypeCheckbox  FieldDataType = "checkbox"
	FieldTypeEmail     FieldDataType = "email"
	FieldTypePhone     FieldDataType = "phone"
)

// Doc types that carry indexed semantics. Everything else is preserved
// verbatim in the raw column and otherwise treated as a plain node.
const (
	DocTypeTuple    = "tuple"
	DocTypeTagDef   = "tagDef"
	DocTypeAttrDef  = "attrDef"
	DocTypeMetaNode = "metanode"
)

// Reference types recorded by the indexer.
const (
	RefTypeChild = "child"
	RefTypeField = "field"
	RefTypeTag   = "tag"
)

// Node is the smallest addressable item in the graph.
// Name is a pointer because "unnamed" and "named empty" are distinct states:
// named-ancestor resolution stops at the first node with a non-null name.
type Node struct {
	ID       string          `json:"id"`
	Name     *string         `json:"name,omitempty"`
	ParentID *string         `json:"parent_id,omitempty"`
	DocType  string          `json:"doc_type,omitempty"`
	Created  int64           `json:"created,omitempty"` // epoch ms
	Updated  int64           `json:"updated,omitempty"` // epoch ms
	DoneAt   int64           `json:"done_at,omitempty"` // epoch ms
	Children []string        `json:"children,omitempty"`
	Raw      json.RawMessage `json:"-"` // original record, preserved verbatim
}

// NameOrEmpty returns the node name or "" when the node is unnamed.
func (n *Node) NameOrEmpty() string {
	if n.Name == nil {
		return ""
	}
	return *n.Name
}

// Reference is a directed edge between two nodes. Duplicates are permitted
// in storage; read paths dedupe.
type Reference struct {
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
	RefType  string `json:"ref_type"`
}

// TagApplication records that a data node carries a supertag, via the
// carrier tuple from the source representation.
type TagApplication struct {
	TupleNodeID string `json:"tuple_node_id"`
	DataNodeID  string `json:"data_node_id"`
	TagID       string `json:"tag_id"`
	TagName     string `json:"tag_name"`
}

// FieldValue is one ordered value of one field on one node.
type FieldValue struct {
	TupleID     string `json:"tuple_id"`
	ParentID    string `json:"parent_id"`
	FieldDefID  string `json:"field_def_id"`
	FieldName   string `json:"field_name"`
	ValueNodeID string `json:"value_node_id,omitempty"`
	ValueText   string `json:"value_text"`
	ValueOrder  int    `json:"value_order"`
}

// Supertag is a user-defined type with fields and (possibly multiple) parents.
type Supertag struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	NormalizedName string           `json:"normalized_name"`
	Description    *string          `json:"description,omitempty"`
	Color          *string          `json:"color,omitempty"`
	ParentIDs      []string         `json:"extends,omitempty"`
	Fields         []*SupertagField `json:"fields,omitempty"`
}

// SupertagField is one field definition owned by a supertag.
// Depth is 0 for own fields and grows with inheritance distance; it is only
// populated by inheritance-closure lookups.
type SupertagField struct {
	TagID            string        `json:"tag_id"`
	Name             string        `json:"name"`
	FieldLabelID     string        `json:"attribute_id"`
	FieldOrder       int           `json:"field_order"`
	NormalizedName   string        `json:"normalized_name"`
	Description      *string       `json:"description,omitempty"`
	DataType         FieldDataType `json:"data_type,omitempty"`
	TargetSupertagID *string       `json:"target_supertag_id,omitempty"`
	DefaultValueID   *string       `json:"default_value_id,omitempty"`
	Depth            int           `json:"-"`
}

// EmbeddingRecord is the per-node embedding metadata row. Vector bytes live
// in the sibling vector store, addressed by node id.
type EmbeddingRecord struct {
	NodeID     string `json:"node_id"`
	Dimensions int    `json:"dimensions"`
	TextHash   string `json:"text_hash"`
}

// IndexReport summarizes one snapshot ingestion.
type IndexReport struct {
	Added          int    `json:"added"`
	Modified       int    `json:"modified"`
	Deleted        int    `json:"deleted"`
	SkippedRecords int    `json:"skipped_records,omitempty"`
	NodesTotal     int    `json:"nodes_total"`
	SupertagsTotal int    `json:"supertags_total"`
	FieldsTotal    int    `json:"fields_total"`
	RefsTotal      int    `json:"refs_total"`
	TagAppsTotal   int    `json:"tag_apps_total"`
	DurationMS     int64  `json:"duration_ms"`
	ExportFile     string `json:"export_file"`
}

// Statistics is the store-level stats block for `st stats`.
type Statistics struct {
	Nodes       int    `json:"nodes"`
	NamedNodes  int    `json:"named_nodes"`
	Refs        int    `json:"refs"`
	TagApps     int    `json:"tag_apps"`
	FieldValues int    `json:"field_values"`
	Supertags   int    `json:"supertags"`
	Fields      int    `json:"fields"`
	Embeddings  int    `json:"embeddings"`
	DBPath      string `json:"db_path,omitempty"`
	DBSizeBytes int64  `json:"db_size_bytes,omitempty"`
	LastExport  string `json:"last_export,omitempty"`
}

// Workspace is one entry in the user's workspace registry.
type Workspace struct {
	Alias           string `json:"alias" yaml:"alias"`
	RootID          string `json:"root_id,omitempty" yaml:"root_id,omitempty"`
	NodeID          string `json:"nodeid,omitempty" yaml:"nodeid,omitempty"`
	ExportDir       string `json:"export_dir" yaml:"export_dir"`
	DBPath          string `json:"db_path" yaml:"db_path"`
	SchemaCachePath string `json:"schema_cache_path,omitempty" yaml:"schema_cache_path,omitempty"`
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Default         bool   `json:"default,omitempty" yaml:"default,omitempty"`
	Token           string `json:"token,omitempty" yaml:"token,omitempty"`
	Target          string `json:"target,omitempty" yaml:"target,omitempty"`
}

// VectorDir returns the sibling vector-store directory for a workspace DB.
func (w *Workspace) VectorDir() string {
	return w.DBPath + ".vectors"
}
