// Package middleware contains HTTP middleware for the bridge's command surface.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"

	"github.com/DukeRupert/hacbridge/internal/domain"
	"github.com/DukeRupert/hacbridge/internal/handler"
)

// =============================================================================
// API Token Authentication
// =============================================================================

// APITokenMiddleware requires a bearer token matching a bcrypt hash.
// An empty hash disables the check, which is only allowed in development.
type APITokenMiddleware struct {
	hash     []byte
	failures *RateLimiter
	logger   *slog.Logger

	// verified holds the sha256 of the last token that passed bcrypt.
	verified atomic.Pointer[[sha256.Size]byte]
}

// NewAPITokenMiddleware creates the middleware. failures may be nil; when set,
// each rejected token counts against the caller's address and callers over
// the limit get 429 before their token is checked.
func NewAPITokenMiddleware(hash string, failures *RateLimiter, logger *slog.Logger) *APITokenMiddleware {
	return &APITokenMiddleware{
		hash:     []byte(hash),
		failures: failures,
		logger:   logger,
	}
}

// Enabled reports whether a token is required.
func (m *APITokenMiddleware) Enabled() bool {
	return len(m.hash) > 0
}

// RequireToken rejects requests without a valid Authorization header.
func (m *APITokenMiddleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := getClientIP(r)
		if m.failures != nil && m.failures.Exceeded(clientIP) {
			tooManyRequests(w, r, m.logger, m.failures.TimeUntilReset(clientIP))
			return
		}

		token, ok := bearerToken(r)
		if !ok || !m.check(token) {
			if m.failures != nil {
				m.failures.RecordFailure(clientIP)
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="hacbridge"`)
			handler.ErrorResponse(w, r, m.logger, domain.Unauthorized("middleware.RequireToken", "A valid API token is required"))
			return
		}
		if m.failures != nil {
			m.failures.Reset(clientIP)
		}

		next.ServeHTTP(w, r)
	})
}

func (m *APITokenMiddleware) check(token string) bool {
	sum := sha256.Sum256([]byte(token))
	if last := m.verified.Load(); last != nil && subtle.ConstantTimeCompare(last[:], sum[:]) == 1 {
		return true
	}
	if bcrypt.CompareHashAndPassword(m.hash, []byte(token)) != nil {
		return false
	}
	m.verified.Store(&sum)
	return true
}

// HashToken returns the bcrypt hash to configure as API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// =============================================================================
// Middleware Stack Helper
// =============================================================================

// Stack composes middleware into a single wrapper.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	protect := Stack(rateLimit.Limit, tokenAuth.RequireToken)
//	mux.Handle("POST /tools/{name}", protect(invokeHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// Compile-time checks
// =============================================================================

var (
	_ func(http.Handler) http.Handler = (&APITokenMiddleware{}).RequireToken
	_ func(http.Handler) http.Handler = (&RateLimitMiddleware{}).Limit
	_ func(http.Handler) http.Handler = (&RequestLoggingMiddleware{}).Handler
	_ func(http.Handler) http.Handler = (&SecurityHeadersMiddleware{}).Handler
	_ func(http.Handler) http.Handler = (&MetricsAuthMiddleware{}).Handler
)
