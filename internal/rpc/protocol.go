// Package rpc is the stdio JSON-RPC surface for AI tooling: newline-delimited
// JSON-RPC 2.0 requests on stdin, responses on stdout. Tools are thin
// wrappers over the query engine and schema service.
package rpc

import "encoding/json"

// Tool names.
const (
	ToolSearch    = "search"
	ToolTagged    = "tagged"
	ToolStats     = "stats"
	ToolSupertags = "supertags"
	ToolNode      = "node"
	ToolCreate    = "create"
	ToolSync      = "sync"
)

// Request is one JSON-RPC 2.0 request line.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 response line.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object; Data carries the error-kind name.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SearchParams are shared by the search and tagged tools.
type SearchParams struct {
	Query     string `json:"query,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// NodeParams fetch one node with optional child depth.
type NodeParams struct {
	ID        string `json:"id"`
	Depth     int    `json:"depth,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// CreateParams build (and optionally post) a tagged node payload.
type CreateParams struct {
	Tag       string                 `json:"tag"`
	Name      string                 `json:"name"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Children  []string               `json:"children,omitempty"`
	DryRun    bool                   `json:"dry_run,omitempty"`
	Workspace string                 `json:"workspace,omitempty"`
}

// SyncParams drive the sync tool.
type SyncParams struct {
	Action    string `json:"action"` // index | status
	Workspace string `json:"workspace,omitempty"`
}
