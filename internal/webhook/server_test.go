package webhook

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/workspace"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("ST_HOME", t.TempDir())
	reg, err := workspace.LoadRegistry(workspace.DefaultRegistryPath())
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if err := reg.Add(&types.Workspace{Alias: "main"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	cfg := &ServerConfig{Host: "127.0.0.1", Port: 0}
	s := NewServer(cfg, reg, log.New(io.Discard, "", 0))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("body = %s", body)
	}
	if id := resp.Header.Get("X-Request-Id"); len(id) != 8 {
		t.Errorf("X-Request-Id = %q", id)
	}
}

func TestPreflight(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/search", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q", got)
	}
}

func TestHelpListsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/help")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, path := range []string{"/search", "/tags", "/nodes", "/refs", "/semantic-search"} {
		if !strings.Contains(body, path) {
			t.Errorf("help omits %s", path)
		}
	}
}

func TestWorkspacesText(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/workspaces")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "* main (enabled)") {
		t.Errorf("body = %q", body)
	}
}

func TestWorkspacesJSON(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/workspaces?format=json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var list []*types.Workspace
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Alias != "main" || !list[0].Default {
		t.Errorf("list = %+v", list)
	}
}

func TestStatsEmptyWorkspace(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if strings.TrimSpace(body) != "nodes=0 supertags=0 fields=0 refs=0 tag_apps=0" {
		t.Errorf("body = %q", body)
	}
}

func TestStatsUnknownWorkspace(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/stats?workspace=ghost")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "WorkspaceNotFound") {
		t.Errorf("body = %s", body)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv, "/search", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "MissingRequired") {
		t.Errorf("body = %s", body)
	}
}

func TestSearchRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv, "/search", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "InvalidFormat") {
		t.Errorf("body = %s", body)
	}
}

func TestNodesRequiresID(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := post(t, srv, "/nodes", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestNodesMissing(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv, "/nodes", `{"id":"ghost123"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "NodeNotFound") {
		t.Errorf("body = %s", body)
	}
}

func TestTagsMissing(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv, "/tags", `{"name":"nosuch"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "TagNotFound") {
		t.Errorf("body = %s", body)
	}
}

func TestTagsListEmpty(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv, "/tags?format=json", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}
