package sqlite

const schema = `
-- Nodes table: one row per graph node from the latest indexed snapshot.
-- signature is the normalized content hash used for delta computation.
-- raw preserves the original record verbatim for props we do not normalize.
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    name TEXT,
    parent_id TEXT,
    doc_type TEXT NOT NULL DEFAULT '',
    created INTEGER NOT NULL DEFAULT 0,
    updated INTEGER NOT NULL DEFAULT 0,
    done_at INTEGER NOT NULL DEFAULT 0,
    children TEXT NOT NULL DEFAULT '[]',
    signature TEXT NOT NULL DEFAULT '',
    raw BLOB
);

CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_doc_type ON nodes(doc_type);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated);

-- References table: plain directed edges. Duplicates permitted; read paths
-- dedupe.
CREATE TABLE IF NOT EXISTS refs (
    from_node TEXT NOT NULL,
    to_node TEXT NOT NULL,
    ref_type TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_refs_from ON refs(from_node);
CREATE INDEX IF NOT EXISTS idx_refs_to ON refs(to_node);

-- Tag applications: data node carries tag, via the carrier tuple.
CREATE TABLE IF NOT EXISTS tag_apps (
    tuple_node_id TEXT PRIMARY KEY,
    data_node_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    tag_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tag_apps_data ON tag_apps(data_node_id);
CREATE INDEX IF NOT EXISTS idx_tag_apps_tag ON tag_apps(tag_id);
CREATE INDEX IF NOT EXISTS idx_tag_apps_tag_name ON tag_apps(tag_name);

-- Field values: one ordered value of one field on one node.
CREATE TABLE IF NOT EXISTS field_values (
    tuple_id TEXT NOT NULL,
    parent_id TEXT NOT NULL,
    field_def_id TEXT NOT NULL,
    field_name TEXT NOT NULL DEFAULT '',
    value_node_id TEXT NOT NULL DEFAULT '',
    value_text TEXT NOT NULL DEFAULT '',
    value_order INTEGER NOT NULL DEFAULT 0,
    UNIQUE(parent_id, field_def_id, value_order)
);

CREATE INDEX IF NOT EXISTS idx_field_values_parent ON field_values(parent_id);
CREATE INDEX IF NOT EXISTS idx_field_values_def ON field_values(field_def_id);
CREATE INDEX IF NOT EXISTS idx_field_values_def_text ON field_values(field_def_id, value_text);

-- Field label nodes, by id. normalized_name enables name-based resolution.
CREATE TABLE IF NOT EXISTS field_names (
    field_label_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    normalized_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_field_names_norm ON field_names(normalized_name);

-- Supertag metadata, re-derived on every index run.
CREATE TABLE IF NOT EXISTS supertags (
    tag_id TEXT PRIMARY KEY,
    tag_name TEXT NOT NULL,
    normalized_name TEXT NOT NULL DEFAULT '',
    description TEXT,
    color TEXT
);

CREATE INDEX IF NOT EXISTS idx_supertags_name ON supertags(tag_name);
CREATE INDEX IF NOT EXISTS idx_supertags_norm ON supertags(normalized_name);

-- Supertag field definitions.
CREATE TABLE IF NOT EXISTS supertag_fields (
    tag_id TEXT NOT NULL,
    field_label_id TEXT NOT NULL,
    field_name TEXT NOT NULL DEFAULT '',
    field_order INTEGER NOT NULL DEFAULT 0,
    normalized_name TEXT NOT NULL DEFAULT '',
    description TEXT,
    inferred_data_type TEXT NOT NULL DEFAULT 'text',
    target_supertag_id TEXT,
    default_value_id TEXT,
    PRIMARY KEY (tag_id, field_label_id)
);

CREATE INDEX IF NOT EXISTS idx_supertag_fields_norm ON supertag_fields(tag_id, normalized_name);

-- Supertag inheritance edges. Acyclic; the indexer rejects cycle-closing
-- edges before insert.
CREATE TABLE IF NOT EXISTS supertag_parents (
    child_tag_id TEXT NOT NULL,
    parent_tag_id TEXT NOT NULL,
    PRIMARY KEY (child_tag_id, parent_tag_id)
);

CREATE INDEX IF NOT EXISTS idx_supertag_parents_parent ON supertag_parents(parent_tag_id);

-- Embedding metadata: one row per embedded node. Vector bytes live in the
-- sibling vector store, addressed by node id.
CREATE TABLE IF NOT EXISTS embeddings (
    node_id TEXT PRIMARY KEY,
    dimensions INTEGER NOT NULL,
    text_hash TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Config table (user-visible settings).
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Metadata table (internal state: last export file, schema catalog hash).
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Full-text index over node names, external content.
CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
    name,
    content='nodes',
    content_rowid='rowid'
);
`
