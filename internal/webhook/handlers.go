package webhook

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/embed"
	"github.com/tanatools/supertag/internal/query"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/workspace"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWorkspaces(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	list := s.reg.List()
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, list)
		return
	}
	var b strings.Builder
	for _, ws := range list {
		marker := " "
		if ws.Default {
			marker = "*"
		}
		state := "enabled"
		if !ws.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", marker, ws.Alias, state)
	}
	s.writeText(w, strings.TrimRight(b.String(), "\n"))
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.writeText(w, strings.TrimSpace(`
GET  /health           server liveness
GET  /workspaces       configured workspaces
GET  /stats            workspace statistics        ?workspace=A
GET  /embed-stats      embedding statistics        ?workspace=A
POST /search           {"query":"...","tag":"...","mode":"tagged|named|raw"}
POST /tags             {"name":"..."} or {} for all
POST /nodes            {"id":"...","depth":1}
POST /refs             {"id":"..."}
POST /semantic-search  {"query":"...","limit":10}
Append ?format=json (or "format":"json" in the body) for JSON responses.`))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	env, err := s.openEnv(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer env.Close()
	stats, err := env.Store.Statistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, stats)
		return
	}
	s.writeText(w, fmt.Sprintf("nodes=%d supertags=%d fields=%d refs=%d tag_apps=%d",
		stats.Nodes, stats.Supertags, stats.Fields, stats.Refs, stats.TagApps))
}

func (s *Server) handleEmbedStats(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	env, err := s.openEnv(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer env.Close()
	stats, err := env.Store.EmbeddingStatistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, stats)
		return
	}
	s.writeText(w, fmt.Sprintf("embeddings=%d dimensions=%d", stats.Count, stats.Dimensions))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Query == "" {
		s.writeError(w, sterr.New(sterr.MissingRequired, "query is required"))
		return
	}
	env, err := s.openEnv(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer env.Close()

	// A tag filter routes through the query engine; a bare query is FTS
	// with ancestor resolution.
	if req.Tag != "" {
		engine := query.NewEngine(env.Store, env.Schema, nil)
		expr := fmt.Sprintf("find %s where name ~ %q", req.Tag, req.Query)
		if req.Limit > 0 {
			expr += fmt.Sprintf(" limit %d", req.Limit)
		}
		res, err := engine.ExecuteString(r.Context(), expr)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if wantsJSON(req) {
			s.writeJSON(w, http.StatusOK, res)
			return
		}
		var b strings.Builder
		for _, row := range res.Rows {
			fmt.Fprintf(&b, "- %s [%s]\n", row.Name, row.ID)
		}
		s.writeText(w, strings.TrimRight(b.String(), "\n"))
		return
	}

	matches, err := env.Store.SearchNames(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	mode := query.ResolveTagged
	switch req.Mode {
	case "named":
		mode = query.ResolveNamed
	case "raw":
		mode = query.ResolveRaw
	}
	hits, err := query.ResolveAncestors(r.Context(), env.Store, matches, mode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, hits)
		return
	}
	var b strings.Builder
	for _, h := range hits {
		tags := ""
		for _, t := range h.Tags {
			tags += " #" + t
		}
		fmt.Fprintf(&b, "- %s [%s]%s (%d matches)\n", h.Node.NameOrEmpty(), h.Node.ID, tags, h.MatchCount)
	}
	s.writeText(w, strings.TrimRight(b.String(), "\n"))
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	env, err := s.openEnv(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer env.Close()

	if req.Name != "" {
		st, err := env.Schema.GetSupertag(r.Context(), req.Name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		fields, err := env.Schema.AllFields(r.Context(), st.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if wantsJSON(req) {
			s.writeJSON(w, http.StatusOK, map[string]interface{}{"supertag": st, "all_fields": fields})
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "#%s [%s]\n", st.Name, st.ID)
		for _, f := range fields {
			fmt.Fprintf(&b, "  %s (%s)\n", f.Name, f.DataType)
		}
		s.writeText(w, strings.TrimRight(b.String(), "\n"))
		return
	}

	tags, err := env.Schema.ListSupertags(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, tags)
		return
	}
	var b strings.Builder
	for _, st := range tags {
		fmt.Fprintf(&b, "#%s [%s]\n", st.Name, st.ID)
	}
	s.writeText(w, strings.TrimRight(b.String(), "\n"))
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, sterr.New(sterr.MissingRequired, "id is required"))
		return
	}
	env, err := s.openEnv(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer env.Close()

	node, err := env.Store.GetNode(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tags, err := env.Store.TagsOfNode(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	values, err := env.Store.FieldValuesOfNode(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var children []*types.Node
	if req.Depth > 0 {
		children, err = env.Store.GetChildren(r.Context(), req.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"node": node, "tags": tags, "fields": values, "children": children,
		})
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", node.NameOrEmpty(), node.ID)
	for _, t := range tags {
		fmt.Fprintf(&b, "  #%s\n", t.TagName)
	}
	for _, v := range values {
		fmt.Fprintf(&b, "  %s: %s\n", v.FieldName, v.ValueText)
	}
	for _, c := range children {
		fmt.Fprintf(&b, "  - %s [%s]\n", c.NameOrEmpty(), c.ID)
	}
	s.writeText(w, strings.TrimRight(b.String(), "\n"))
}

func (s *Server) handleRefs(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, sterr.New(sterr.MissingRequired, "id is required"))
		return
	}
	env, err := s.openEnv(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer env.Close()

	out, in, err := env.Store.RefsOfNode(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"outbound": out, "inbound": in})
		return
	}
	var b strings.Builder
	for _, ref := range out {
		fmt.Fprintf(&b, "-> %s (%s)\n", ref.ToNode, ref.RefType)
	}
	for _, ref := range in {
		fmt.Fprintf(&b, "<- %s (%s)\n", ref.FromNode, ref.RefType)
	}
	s.writeText(w, strings.TrimRight(b.String(), "\n"))
}

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Query == "" {
		s.writeError(w, sterr.New(sterr.MissingRequired, "query is required"))
		return
	}
	env, err := s.openEnv(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer env.Close()

	results, err := semanticSearch(r, env, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsJSON(req) {
		s.writeJSON(w, http.StatusOK, results)
		return
	}
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "- %s [%s] %.3f\n", res.Node.NameOrEmpty(), res.Node.ID, res.Score)
	}
	s.writeText(w, strings.TrimRight(b.String(), "\n"))
}

func semanticSearch(r *http.Request, env *workspace.Env, req *request) ([]*embed.SearchResult, error) {
	vectors, err := embed.OpenVecStore(env.Workspace.VectorDir())
	if err != nil {
		return nil, err
	}
	sink, err := embed.NewOllamaSink(config.GetString("embed.model"))
	if err != nil {
		return nil, err
	}
	searcher := embed.NewSearcher(env.Store, vectors, sink)
	return searcher.Search(r.Context(), req.Query, embed.SearchOptions{Limit: req.Limit})
}
