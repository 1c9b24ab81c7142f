// Package sink posts node payloads to the external write endpoint. The
// endpoint enforces strict quotas, so the client validates and rate-limits
// before sending; nothing in the store ever depends on the sink's response.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/sterr"
)

const (
	// MaxNodesPerRequest is the endpoint's per-request node quota.
	MaxNodesPerRequest = 100
	// MaxCharsPerRequest is the endpoint's per-request payload size quota.
	MaxCharsPerRequest = 5000
	// minInterval enforces the 1 call/second rate limit.
	minInterval = time.Second
)

// Client posts payloads to one endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

// New builds a write-sink client.
func New(endpoint, token string) (*Client, error) {
	if endpoint == "" {
		return nil, sterr.New(sterr.MissingRequired, "write endpoint is not configured").
			WithSuggestion("set ST_ENDPOINT or the endpoint config key")
	}
	if token == "" {
		return nil, sterr.New(sterr.APIKeyMissing, "write token is not configured").
			WithSuggestion("set ST_TOKEN or the workspace token")
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type postBody struct {
	TargetNodeID string                `json:"targetNodeId"`
	Nodes        []*schema.PayloadNode `json:"nodes"`
}

// Post sends one payload batch to a target node. Quota violations fail
// locally with ValidationErrors before any network call.
func (c *Client) Post(ctx context.Context, target string, nodes []*schema.PayloadNode) error {
	if target == "" {
		return sterr.New(sterr.MissingRequired, "target node id is required").
			WithSuggestion("set ST_TARGET or the workspace target")
	}
	if err := validate(nodes); err != nil {
		return err
	}
	body, err := json.Marshal(postBody{TargetNodeID: target, Nodes: nodes})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if len(body) > MaxCharsPerRequest {
		return sterr.New(sterr.ValidationErrors,
			"payload is %d chars, limit is %d", len(body), MaxCharsPerRequest).
			WithSuggestion("split the request into smaller batches")
	}

	c.throttle(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return sterr.Wrap(sterr.NetworkError, err, "post to write endpoint")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	debug.Logf("sink: POST %s -> %d", c.endpoint, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return sterr.New(sterr.AuthFailed, "write endpoint rejected the token")
	case resp.StatusCode == http.StatusForbidden:
		return sterr.New(sterr.PermissionDenied, "write endpoint denied access to target %s", target)
	case resp.StatusCode == http.StatusTooManyRequests:
		return sterr.New(sterr.RateLimited, "write endpoint rate limit hit").
			WithSuggestion("wait a moment and retry")
	case resp.StatusCode >= 400:
		return sterr.New(sterr.APIError, "write endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func validate(nodes []*schema.PayloadNode) error {
	if len(nodes) == 0 {
		return sterr.New(sterr.ValidationErrors, "payload has no nodes")
	}
	total := 0
	for _, n := range nodes {
		total += countNodes(n)
	}
	if total > MaxNodesPerRequest {
		return sterr.New(sterr.ValidationErrors,
			"payload has %d nodes, limit is %d", total, MaxNodesPerRequest).
			WithSuggestion("split the request into smaller batches")
	}
	return nil
}

func countNodes(n *schema.PayloadNode) int {
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}

// throttle blocks until a second has passed since the previous call.
func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	now := time.Now()
	wait := minInterval - now.Sub(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	// Reserve the next slot before sleeping so concurrent callers queue up.
	c.lastCall = now.Add(wait)
	c.mu.Unlock()
	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
