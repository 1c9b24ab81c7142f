package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/workspace"
)

// Server is the webhook daemon. It holds no per-workspace state; every
// request resolves and opens its workspace.
type Server struct {
	cfg    *ServerConfig
	reg    *workspace.Registry
	logger *log.Logger
	http   *http.Server
}

// NewServer wires the daemon.
func NewServer(cfg *ServerConfig, reg *workspace.Registry, logger *log.Logger) *Server {
	return &Server{cfg: cfg, reg: reg, logger: logger}
}

// Handler builds the route table with CORS and logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /workspaces", s.handleWorkspaces)
	mux.HandleFunc("GET /help", s.handleHelp)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /embed-stats", s.handleEmbedStats)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /tags", s.handleTags)
	mux.HandleFunc("POST /nodes", s.handleNodes)
	mux.HandleFunc("POST /refs", s.handleRefs)
	mux.HandleFunc("POST /semantic-search", s.handleSemanticSearch)
	return s.middleware(mux)
}

// ListenAndServe runs until ctx is canceled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()
	s.logger.Printf("listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// middleware applies open CORS and request logging. The server binds to
// loopback by default, so there is no authentication layer. Each request
// gets an id so log lines from concurrent requests can be correlated.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		reqID := uuid.NewString()[:8]
		w.Header().Set("X-Request-Id", reqID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("[%s] %s %s (%s)", reqID, r.Method, r.URL.Path, time.Since(start))
	})
}

// request is the common body shape; endpoint-specific fields are optional.
type request struct {
	Workspace string `json:"workspace,omitempty"`
	Format    string `json:"format,omitempty"`
	Query     string `json:"query,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Name      string `json:"name,omitempty"`
	ID        string `json:"id,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Mode      string `json:"mode,omitempty"` // tagged | named | raw
}

func decodeRequest(r *http.Request) (*request, error) {
	req := &request{}
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, req); err != nil {
				return nil, sterr.Wrap(sterr.InvalidFormat, err, "parse request body")
			}
		}
	}
	if v := r.URL.Query().Get("workspace"); v != "" {
		req.Workspace = v
	}
	if v := r.URL.Query().Get("format"); v != "" {
		req.Format = v
	}
	return req, nil
}

func wantsJSON(req *request) bool { return req.Format == "json" }

// openEnv resolves the request's workspace and opens it.
func (s *Server) openEnv(req *request) (*workspace.Env, error) {
	ws, err := workspace.Resolve(s.reg, workspace.Selector{Alias: req.Workspace})
	if err != nil {
		return nil, err
	}
	return workspace.Open(ws)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, text)
}

// writeError maps an error kind to its HTTP status and a JSON body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := sterr.KindOf(err)
	s.writeJSON(w, sterr.HTTPStatus(kind), map[string]interface{}{
		"error":   string(kind),
		"message": err.Error(),
	})
}
