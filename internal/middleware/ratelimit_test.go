package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, discardLogger())
	defer rl.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("192.168.1.1"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("192.168.1.1"))
	assert.True(t, rl.Allow("192.168.1.2"), "other keys have their own window")
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond, discardLogger())
	defer rl.Close()

	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
	assert.Greater(t, rl.TimeUntilReset("k"), time.Duration(0))

	time.Sleep(70 * time.Millisecond)

	assert.Zero(t, rl.TimeUntilReset("k"))
	assert.True(t, rl.Allow("k"))
}

func TestRateLimiter_RecordFailureAndExceeded(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, discardLogger())
	defer rl.Close()

	assert.False(t, rl.Exceeded("k"))
	rl.RecordFailure("k")
	assert.False(t, rl.Exceeded("k"))
	rl.RecordFailure("k")
	assert.True(t, rl.Exceeded("k"))

	rl.Reset("k")
	assert.False(t, rl.Exceeded("k"))
	assert.Zero(t, rl.TimeUntilReset("k"))
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Millisecond, discardLogger())
	rl.Close()
	rl.Close()
}

// =============================================================================
// Rate Limit Middleware Tests
// =============================================================================

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, discardLogger())
	defer rl.Close()
	wrapped := NewRateLimitMiddleware(rl, discardLogger()).Limit(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/tools/flexible_search", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send().Code)
	assert.Equal(t, http.StatusOK, send().Code)

	rec := send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit", body.Error.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5000", "10.0.0.1"},
		{"remote without port", nil, "10.0.0.1", "10.0.0.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"}, "10.0.0.1:5000", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "10.0.0.1:5000", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
