// Package sterr defines the closed set of error kinds surfaced by supertag
// and the mappings from kinds to process exit codes, HTTP statuses and
// JSON-RPC error codes.
package sterr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one failure category.
type Kind string

const (
	ConfigNotFound        Kind = "ConfigNotFound"
	ConfigInvalid         Kind = "ConfigInvalid"
	WorkspaceNotFound     Kind = "WorkspaceNotFound"
	APIKeyMissing         Kind = "ApiKeyMissing"
	InvalidParameter      Kind = "InvalidParameter"
	MissingRequired       Kind = "MissingRequired"
	InvalidFormat         Kind = "InvalidFormat"
	NodeNotFound          Kind = "NodeNotFound"
	TagNotFound           Kind = "TagNotFound"
	DatabaseNotFound      Kind = "DatabaseNotFound"
	DatabaseCorrupt       Kind = "DatabaseCorrupt"
	DatabaseLocked        Kind = "DatabaseLocked"
	SyncRequired          Kind = "SyncRequired"
	APIError              Kind = "ApiError"
	RateLimited           Kind = "RateLimited"
	Timeout               Kind = "Timeout"
	NetworkError          Kind = "NetworkError"
	AuthFailed            Kind = "AuthFailed"
	AuthExpired           Kind = "AuthExpired"
	PermissionDenied      Kind = "PermissionDenied"
	LocalAPIUnavailable   Kind = "LocalApiUnavailable"
	MutationsNotSupported Kind = "MutationsNotSupported"
	ValidationErrors      Kind = "ValidationErrors"
	InternalError         Kind = "InternalError"
	CorruptSnapshot       Kind = "CorruptSnapshot"
	CycleDetected         Kind = "CycleDetected"
	FieldUnknown          Kind = "FieldUnknown"
	UnknownError          Kind = "UnknownError"
)

// retryableKinds are transient failures a caller may retry.
var retryableKinds = map[Kind]bool{
	DatabaseLocked:      true,
	RateLimited:         true,
	Timeout:             true,
	NetworkError:        true,
	LocalAPIUnavailable: true,
	TagNotFound:         true,
}

// Error carries one classified failure.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Doc        string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the error's kind is transient.
func (e *Error) Retryable() bool { return retryableKinds[e.Kind] }

// New creates a classified error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithSuggestion attaches a one-line remedy shown by the CLI.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDoc attaches a documentation reference.
func (e *Error) WithDoc(ref string) *Error {
	e.Doc = ref
	return e
}

// KindOf extracts the kind from any error chain; unclassified errors are
// UnknownError.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return UnknownError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether any error in the chain is retryable.
func Retryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

// ExitCode maps an error to a CLI exit code: 0 success, 1 user-visible
// failure, 2 usage error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case InvalidParameter, MissingRequired:
		return 2
	default:
		return 1
	}
}

// HTTPStatus maps an error kind to a webhook response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidParameter, MissingRequired, InvalidFormat, ValidationErrors, FieldUnknown, CorruptSnapshot, CycleDetected:
		return http.StatusBadRequest
	case NodeNotFound, TagNotFound, WorkspaceNotFound, DatabaseNotFound, ConfigNotFound:
		return http.StatusNotFound
	case DatabaseLocked:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case AuthFailed, AuthExpired, APIKeyMissing:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case LocalAPIUnavailable, NetworkError, APIError:
		return http.StatusServiceUnavailable
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RPCCode maps an error kind to a JSON-RPC 2.0 error code.
func RPCCode(kind Kind) int {
	switch kind {
	case InvalidParameter, MissingRequired, InvalidFormat, ValidationErrors:
		return -32602 // invalid params
	case NodeNotFound, TagNotFound, WorkspaceNotFound, DatabaseNotFound, FieldUnknown:
		return -32001
	case DatabaseLocked, RateLimited, Timeout, NetworkError, LocalAPIUnavailable:
		return -32002
	default:
		return -32603 // internal error
	}
}
