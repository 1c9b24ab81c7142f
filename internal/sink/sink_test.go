package sink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/sterr"
)

func TestNewRequiresEndpointAndToken(t *testing.T) {
	if _, err := New("", "tok"); !sterr.IsKind(err, sterr.MissingRequired) {
		t.Errorf("missing endpoint kind = %v", sterr.KindOf(err))
	}
	if _, err := New("http://x", ""); !sterr.IsKind(err, sterr.APIKeyMissing) {
		t.Errorf("missing token kind = %v", sterr.KindOf(err))
	}
	if _, err := New("http://x", "tok"); err != nil {
		t.Errorf("New: %v", err)
	}
}

func simplePayload(name string) []*schema.PayloadNode {
	return []*schema.PayloadNode{{Name: name}}
}

func TestPostRequiresTarget(t *testing.T) {
	c, _ := New("http://unused", "tok")
	err := c.Post(context.Background(), "", simplePayload("x"))
	if !sterr.IsKind(err, sterr.MissingRequired) {
		t.Errorf("kind = %v, want MissingRequired", sterr.KindOf(err))
	}
}

func TestPostNodeQuota(t *testing.T) {
	c, _ := New("http://unused", "tok")

	// 1 root + 100 children = 101 nodes, over the per-request quota.
	root := &schema.PayloadNode{Name: "root"}
	for i := 0; i < MaxNodesPerRequest; i++ {
		root.Children = append(root.Children, &schema.PayloadNode{Name: "c"})
	}
	err := c.Post(context.Background(), "target1", []*schema.PayloadNode{root})
	if !sterr.IsKind(err, sterr.ValidationErrors) {
		t.Errorf("kind = %v, want ValidationErrors", sterr.KindOf(err))
	}

	if err := c.Post(context.Background(), "target1", nil); !sterr.IsKind(err, sterr.ValidationErrors) {
		t.Errorf("empty payload kind = %v", sterr.KindOf(err))
	}
}

func TestPostCharQuota(t *testing.T) {
	c, _ := New("http://unused", "tok")
	err := c.Post(context.Background(), "target1", simplePayload(strings.Repeat("x", MaxCharsPerRequest)))
	if !sterr.IsKind(err, sterr.ValidationErrors) {
		t.Errorf("kind = %v, want ValidationErrors", sterr.KindOf(err))
	}
}

func TestPostSuccess(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "secret-token")
	if err := c.Post(context.Background(), "target1", simplePayload("hello")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if !strings.Contains(gotBody, `"targetNodeId":"target1"`) || !strings.Contains(gotBody, `"name":"hello"`) {
		t.Errorf("body = %s", gotBody)
	}
}

func TestPostStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   sterr.Kind
	}{
		{http.StatusUnauthorized, sterr.AuthFailed},
		{http.StatusForbidden, sterr.PermissionDenied},
		{http.StatusTooManyRequests, sterr.RateLimited},
		{http.StatusInternalServerError, sterr.APIError},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c, _ := New(srv.URL, "tok")
		err := c.Post(context.Background(), "target1", simplePayload("x"))
		srv.Close()
		if !sterr.IsKind(err, tt.kind) {
			t.Errorf("status %d kind = %v, want %v", tt.status, sterr.KindOf(err), tt.kind)
		}
	}
}

func TestPostThrottles(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "tok")
	if err := c.Post(context.Background(), "target1", simplePayload("a")); err != nil {
		t.Fatalf("first post: %v", err)
	}

	// A canceled context must not leave the second call stuck in the
	// rate-limit sleep.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = c.Post(ctx, "target1", simplePayload("b"))
	if n := atomic.LoadInt32(&calls); n < 1 {
		t.Errorf("calls = %d", n)
	}
}
