// Package backend talks to the commerce backend on behalf of the operation
// catalog. It owns two request families:
//
//   - Console: session-authenticated calls to the administration console,
//     which logs in through an HTML form guarded by a rotating anti-forgery
//     token and signals session loss by redirecting to its login page.
//   - ReadAPI: basic-auth calls to the stable read API, independent of any
//     session.
//
// The package receives all settings through Config and never reads the
// environment, logs above debug level, or terminates the process.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultConsolePath is the path prefix of the administration console.
	DefaultConsolePath = "/hac"

	// DefaultRequestTimeout bounds every network round trip.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultTokenHeader carries the session token on protected requests.
	DefaultTokenHeader = "X-CSRF-TOKEN"

	// loginSubmitPath is the form action of the console login page.
	loginSubmitPath = "/j_spring_security_check"
)

// Config contains everything the backend clients need.
type Config struct {
	// BaseURL is the scheme and host of the backend (e.g. "https://localhost:9002").
	BaseURL string

	// ConsolePath is the console path prefix. Default: "/hac".
	ConsolePath string

	// Username and Password are the console credentials.
	Username string
	Password string

	// ReadAPIURL is the root of the read API (e.g. "https://localhost:9002/occ/v2").
	ReadAPIURL string

	// ReadUsername and ReadPassword authenticate read API calls. They default
	// to the console credentials.
	ReadUsername string
	ReadPassword string

	// RequestTimeout bounds each round trip, including login steps.
	RequestTimeout time.Duration

	// TokenField is the anti-forgery form field and meta name. Default: "_csrf".
	TokenField string

	// TokenHeader is the request header carrying the session token.
	TokenHeader string

	// Transport is used for all requests. Default: http.DefaultTransport.
	Transport http.RoundTripper

	// Observer receives login and request events. Optional.
	Observer Observer

	// Logger receives debug-level events. Optional.
	Logger *slog.Logger
}

// Observer receives lifecycle events from the backend clients.
// Implementations must be safe for concurrent use.
type Observer interface {
	// LoginFinished is called after every login attempt.
	LoginFinished(d time.Duration, err error)

	// SessionExpired is called when a protected request was redirected to
	// the login page.
	SessionExpired()

	// RequestFinished is called after every request on the given surface
	// ("console" or "read"). statusCode is 0 when no response arrived.
	RequestFinished(surface string, statusCode int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) LoginFinished(time.Duration, error) {}
func (nopObserver) SessionExpired() {}
func (nopObserver) RequestFinished(string, int, time.Duration) {}

// withDefaults validates the config and fills in defaults.
func (c Config) withDefaults() (Config, error) {
	if c.BaseURL == "" {
		return c, errors.New("backend base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return c, fmt.Errorf("invalid backend base URL %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	if c.ConsolePath == "" {
		c.ConsolePath = DefaultConsolePath
	}
	if trimmed := strings.Trim(c.ConsolePath, "/"); trimmed != "" {
		c.ConsolePath = "/" + trimmed
	} else {
		c.ConsolePath = ""
	}
	if c.ReadAPIURL == "" {
		c.ReadAPIURL = c.BaseURL + "/occ/v2"
	}
	c.ReadAPIURL = strings.TrimSuffix(c.ReadAPIURL, "/")
	if c.ReadUsername == "" {
		c.ReadUsername = c.Username
		c.ReadPassword = c.Password
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.TokenField == "" {
		c.TokenField = DefaultTokenField
	}
	if c.TokenHeader == "" {
		c.TokenHeader = DefaultTokenHeader
	}
	if c.Transport == nil {
		c.Transport = http.DefaultTransport
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// consoleURL joins an endpoint onto the console prefix.
func (c Config) consoleURL(endpoint string) string {
	if endpoint == "" {
		endpoint = "/"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.BaseURL + c.ConsolePath + endpoint
}
