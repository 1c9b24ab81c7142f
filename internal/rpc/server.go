package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/query"
	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/sink"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/workspace"
)

// Server reads requests from in and writes responses to out, one JSON
// object per line.
type Server struct {
	reg *workspace.Registry
	in  io.Reader
	out io.Writer
}

// NewServer builds a stdio server over the workspace registry.
func NewServer(reg *workspace.Registry, in io.Reader, out io.Writer) *Server {
	return &Server{reg: reg, in: in, out: out}
}

// Run serves until stdin closes or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(s.out)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			_ = enc.Encode(Response{JSONRPC: "2.0", Error: &Error{Code: -32700, Message: "parse error"}})
			continue
		}
		resp := s.dispatch(ctx, &req)
		if req.ID == nil {
			continue // notification, no response
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}
	result, err := s.call(ctx, req.Method, req.Params)
	if err != nil {
		kind := sterr.KindOf(err)
		resp.Error = &Error{
			Code:    sterr.RPCCode(kind),
			Message: err.Error(),
			Data:    map[string]string{"kind": string(kind)},
		}
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	debug.Logf("rpc: %s", method)
	switch method {
	case ToolSearch:
		return s.search(ctx, params)
	case ToolTagged:
		return s.tagged(ctx, params)
	case ToolStats:
		return s.stats(ctx, params)
	case ToolSupertags:
		return s.supertags(ctx, params)
	case ToolNode:
		return s.node(ctx, params)
	case ToolCreate:
		return s.create(ctx, params)
	case ToolSync:
		return s.sync(ctx, params)
	default:
		return nil, sterr.New(sterr.InvalidParameter, "unknown method %q", method)
	}
}

func (s *Server) openEnv(alias string) (*workspace.Env, error) {
	ws, err := workspace.Resolve(s.reg, workspace.Selector{Alias: alias})
	if err != nil {
		return nil, err
	}
	return workspace.Open(ws)
}

func unmarshalParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return sterr.Wrap(sterr.InvalidFormat, err, "parse params")
	}
	return nil
}

func (s *Server) search(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SearchParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, sterr.New(sterr.MissingRequired, "query is required")
	}
	env, err := s.openEnv(p.Workspace)
	if err != nil {
		return nil, err
	}
	defer env.Close()
	matches, err := env.Store.SearchNames(ctx, p.Query, p.Limit)
	if err != nil {
		return nil, err
	}
	return query.ResolveAncestors(ctx, env.Store, matches, query.ResolveTagged)
}

func (s *Server) tagged(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SearchParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Tag == "" {
		return nil, sterr.New(sterr.MissingRequired, "tag is required")
	}
	env, err := s.openEnv(p.Workspace)
	if err != nil {
		return nil, err
	}
	defer env.Close()
	engine := query.NewEngine(env.Store, env.Schema, nil)
	expr := "find " + p.Tag
	if p.Limit > 0 {
		expr += fmt.Sprintf(" limit %d", p.Limit)
	}
	return engine.ExecuteString(ctx, expr)
}

func (s *Server) stats(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SearchParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	env, err := s.openEnv(p.Workspace)
	if err != nil {
		return nil, err
	}
	defer env.Close()
	return env.Store.Statistics(ctx)
}

func (s *Server) supertags(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SearchParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	env, err := s.openEnv(p.Workspace)
	if err != nil {
		return nil, err
	}
	defer env.Close()
	return env.Schema.ListSupertags(ctx)
}

func (s *Server) node(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p NodeParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, sterr.New(sterr.MissingRequired, "id is required")
	}
	env, err := s.openEnv(p.Workspace)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	node, err := env.Store.GetNode(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	tags, err := env.Store.TagsOfNode(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	values, err := env.Store.FieldValuesOfNode(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{"node": node, "tags": tags, "fields": values}
	if p.Depth > 0 {
		children, err := env.Store.GetChildren(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out["children"] = children
	}
	return out, nil
}

func (s *Server) create(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p CreateParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Tag == "" || p.Name == "" {
		return nil, sterr.New(sterr.MissingRequired, "tag and name are required")
	}
	env, err := s.openEnv(p.Workspace)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	payload, err := env.Schema.BuildPayload(ctx, schema.SplitTags(p.Tag), p.Name, p.Fields)
	if err != nil {
		return nil, err
	}
	for _, child := range p.Children {
		payload.Children = append(payload.Children, &schema.PayloadNode{Name: child})
	}
	if p.DryRun {
		return map[string]interface{}{"dry_run": true, "payload": payload}, nil
	}

	client, err := sink.New(config.GetString("endpoint"), env.Workspace.Token)
	if err != nil {
		return nil, err
	}
	target := env.Workspace.Target
	if target == "" {
		target = config.GetString("target")
	}
	if err := client.Post(ctx, target, []*schema.PayloadNode{payload}); err != nil {
		return nil, err
	}
	return map[string]interface{}{"posted": true, "payload": payload}, nil
}

func (s *Server) sync(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SyncParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	env, err := s.openEnv(p.Workspace)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	switch p.Action {
	case "index":
		return env.IndexLatest(ctx, "")
	case "status", "":
		return env.Store.Statistics(ctx)
	default:
		return nil, sterr.New(sterr.InvalidParameter, "unknown sync action %q", p.Action)
	}
}
