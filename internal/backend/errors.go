package backend

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrAuthentication is returned when the console rejects the credential
	// pair. It is never retried automatically.
	ErrAuthentication = errors.New("invalid credentials or login rejected")

	// ErrAuthProtocol is returned when the login markup does not carry the
	// expected anti-forgery token. It usually means a backend version mismatch.
	ErrAuthProtocol = errors.New("anti-forgery token not found")

	// ErrSessionExpired is returned when a request is redirected to the login
	// page again right after a fresh login.
	ErrSessionExpired = errors.New("re-authentication did not restore a usable session")
)

// =============================================================================
// Structured Error Types
// =============================================================================

// TimeoutError reports a round trip that exceeded the configured bound.
type TimeoutError struct {
	Bound  time.Duration
	Target string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.Target, e.Bound)
}

// RemoteError carries a non-success response from the backend.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend responded with status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// UnexpectedResponseError is returned when an HTML document comes back where
// data was expected. The console serves its login page with 200 in some
// failure modes, so this is treated as a disguised failure.
type UnexpectedResponseError struct {
	ContentType string
	BodyPrefix  string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.ContentType, e.BodyPrefix)
}

// Error wraps backend failures with the operation and target involved.
// It supports errors.Is and errors.As through Unwrap.
type Error struct {
	// Op is the step that failed (e.g., "login", "call", "read").
	Op string

	// Target is the URL or endpoint involved.
	Target string

	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("backend %s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// =============================================================================
// Classification
// =============================================================================

// Error kinds returned by Kind.
const (
	KindAuthentication     = "authentication"
	KindAuthProtocol       = "auth_protocol"
	KindSessionExpired     = "session_expired"
	KindTimeout            = "timeout"
	KindRemote             = "remote"
	KindUnexpectedResponse = "unexpected_response"
	KindUnknown            = "unknown"
)

// Kind returns the tag of a backend failure so callers can branch on it
// without matching every type themselves.
func Kind(err error) string {
	var (
		timeoutErr    *TimeoutError
		remoteErr     *RemoteError
		unexpectedErr *UnexpectedResponseError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrAuthProtocol):
		return KindAuthProtocol
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &remoteErr):
		return KindRemote
	case errors.As(err, &unexpectedErr):
		return KindUnexpectedResponse
	default:
		return KindUnknown
	}
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
