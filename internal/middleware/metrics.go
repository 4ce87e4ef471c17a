package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
)

// =============================================================================
// Metrics Basic Auth
// =============================================================================

// MetricsAuthMiddleware guards the scrape endpoint with basic auth. Credentials
// are compared as sha256 digests so neither length nor prefix leaks.
type MetricsAuthMiddleware struct {
	user     [sha256.Size]byte
	pass     [sha256.Size]byte
	enabled  bool
	failures *RateLimiter
	logger   *slog.Logger
}

// NewMetricsAuthMiddleware disables the check when both username and password
// are empty. failures may be nil.
func NewMetricsAuthMiddleware(username, password string, failures *RateLimiter, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		user:     sha256.Sum256([]byte(username)),
		pass:     sha256.Sum256([]byte(password)),
		enabled:  username != "" || password != "",
		failures: failures,
		logger:   logger,
	}
}

// Handler returns middleware that requires the configured credentials.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := getClientIP(r)
		if m.failures != nil && m.failures.Exceeded(clientIP) {
			retry := max(int(m.failures.TimeUntilReset(clientIP).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		if !m.valid(r) {
			if m.failures != nil {
				m.failures.RecordFailure(clientIP)
			}
			m.logger.Warn("metrics scrape rejected", "ip", clientIP)
			// The scrape endpoint speaks the exposition format, not JSON errors.
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *MetricsAuthMiddleware) valid(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	userOK := subtle.ConstantTimeCompare(u[:], m.user[:])
	passOK := subtle.ConstantTimeCompare(p[:], m.pass[:])
	return userOK&passOK == 1
}
