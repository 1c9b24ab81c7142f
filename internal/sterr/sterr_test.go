package sterr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := New(TagNotFound, "supertag %q not found", "meeting")
	if got := e.Error(); got != `TagNotFound: supertag "meeting" not found` {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(NetworkError, errors.New("dial refused"), "post payload")
	if got := wrapped.Error(); got != "NetworkError: post payload: dial refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindThroughWrapping(t *testing.T) {
	base := New(DatabaseLocked, "busy")
	chained := fmt.Errorf("outer context: %w", base)

	if !IsKind(chained, DatabaseLocked) {
		t.Error("kind lost through fmt wrapping")
	}
	if KindOf(chained) != DatabaseLocked {
		t.Errorf("KindOf = %v", KindOf(chained))
	}
	if KindOf(errors.New("plain")) != UnknownError {
		t.Errorf("plain error kind = %v", KindOf(errors.New("plain")))
	}
	if IsKind(nil, DatabaseLocked) {
		t.Error("nil error matched a kind")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	e := Wrap(APIError, inner, "call failed")
	if !errors.Is(e, inner) {
		t.Error("Unwrap chain broken")
	}
}

func TestSuggestionAndDocChain(t *testing.T) {
	e := New(ConfigNotFound, "no config").
		WithSuggestion("run st workspace add").
		WithDoc("workspaces.md")
	if e.Suggestion != "run st workspace add" || e.Doc != "workspaces.md" {
		t.Errorf("error = %+v", e)
	}
}

func TestRetryable(t *testing.T) {
	retryable := []Kind{DatabaseLocked, RateLimited, Timeout, NetworkError, LocalAPIUnavailable, TagNotFound}
	for _, k := range retryable {
		if !Retryable(New(k, "x")) {
			t.Errorf("%v not retryable", k)
		}
	}
	for _, k := range []Kind{InvalidParameter, CorruptSnapshot, AuthFailed, InternalError} {
		if Retryable(New(k, "x")) {
			t.Errorf("%v retryable", k)
		}
	}
	if Retryable(errors.New("plain")) {
		t.Error("unclassified error retryable")
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("nil exit = %d", got)
	}
	if got := ExitCode(New(InvalidParameter, "bad flag")); got != 2 {
		t.Errorf("usage exit = %d", got)
	}
	if got := ExitCode(New(MissingRequired, "no target")); got != 2 {
		t.Errorf("usage exit = %d", got)
	}
	if got := ExitCode(New(NodeNotFound, "gone")); got != 1 {
		t.Errorf("failure exit = %d", got)
	}
	if got := ExitCode(errors.New("plain")); got != 1 {
		t.Errorf("plain exit = %d", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{InvalidParameter, http.StatusBadRequest},
		{CorruptSnapshot, http.StatusBadRequest},
		{CycleDetected, http.StatusBadRequest},
		{TagNotFound, http.StatusNotFound},
		{WorkspaceNotFound, http.StatusNotFound},
		{DatabaseLocked, http.StatusConflict},
		{RateLimited, http.StatusTooManyRequests},
		{AuthFailed, http.StatusUnauthorized},
		{PermissionDenied, http.StatusForbidden},
		{LocalAPIUnavailable, http.StatusServiceUnavailable},
		{Timeout, http.StatusGatewayTimeout},
		{InternalError, http.StatusInternalServerError},
		{UnknownError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestRPCCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{InvalidParameter, -32602},
		{ValidationErrors, -32602},
		{NodeNotFound, -32001},
		{FieldUnknown, -32001},
		{DatabaseLocked, -32002},
		{Timeout, -32002},
		{InternalError, -32603},
		{UnknownError, -32603},
	}
	for _, tt := range tests {
		if got := RPCCode(tt.kind); got != tt.want {
			t.Errorf("RPCCode(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
