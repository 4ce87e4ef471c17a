package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// maxAttempts bounds a protected call to the first try plus one retry after
// re-authentication.
const maxAttempts = 2

// RequestSpec describes one protected console request.
type RequestSpec struct {
	// Method defaults to GET.
	Method string

	// Header holds caller headers. Session headers take precedence for the
	// names they set; every other name is sent unchanged.
	Header http.Header

	// Form is sent form-encoded. On state-changing methods the session token
	// is injected into it, replacing any caller value for that field.
	Form url.Values

	// Body and ContentType are used when Form is nil.
	Body        []byte
	ContentType string

	// NoRetry disables the transparent re-login when the session turns out
	// to be expired. The call fails with ErrSessionExpired instead.
	NoRetry bool
}

// Console issues session-authenticated requests against the console.
type Console struct {
	auth   *Authenticator
	cfg    Config
	logger *slog.Logger
}

// NewConsole creates a Console that obtains sessions from auth.
func NewConsole(auth *Authenticator) *Console {
	return &Console{
		auth:   auth,
		cfg:    auth.cfg,
		logger: auth.cfg.Logger.With("component", "console"),
	}
}

// Authenticator returns the Authenticator backing this Console.
func (c *Console) Authenticator() *Authenticator {
	return c.auth
}

// Call executes one protected operation against endpoint, which is relative
// to the console path prefix.
//
// A redirect to the login page means the cached session expired. The session
// is invalidated and the request is sent once more with a fresh one; a second
// login redirect fails with ErrSessionExpired. If the fresh login itself
// fails, that error is returned instead.
func (c *Console) Call(ctx context.Context, endpoint string, spec RequestSpec) (*Response, error) {
	target := c.cfg.consoleURL(endpoint)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		session, err := c.auth.EnsureSession(ctx)
		if err != nil {
			return nil, err
		}

		req, err := c.newRequest(ctx, target, spec, session)
		if err != nil {
			return nil, &Error{Op: "call", Target: endpoint, Err: err}
		}

		start := time.Now()
		resp, body, err := c.auth.rt.do(ctx, req)
		if err != nil {
			c.cfg.Observer.RequestFinished("console", 0, time.Since(start))
			return nil, &Error{Op: "call", Target: endpoint, Err: err}
		}
		c.cfg.Observer.RequestFinished("console", resp.StatusCode, time.Since(start))

		if !looksLikeLoginRedirect(resp) {
			out, err := classify(resp, body)
			if err != nil {
				return nil, &Error{Op: "call", Target: endpoint, Err: err}
			}
			return out, nil
		}

		c.cfg.Observer.SessionExpired()
		c.logger.Debug("console session expired",
			"endpoint", endpoint,
			"attempt", attempt,
			"location", resp.Header.Get("Location"),
		)

		if attempt+1 >= maxAttempts {
			break
		}
		c.auth.Invalidate()
		if spec.NoRetry {
			break
		}
	}

	return nil, &Error{Op: "call", Target: endpoint, Err: ErrSessionExpired}
}

// newRequest builds the outgoing request decorated with the session.
func (c *Console) newRequest(ctx context.Context, target string, spec RequestSpec, session *Session) (*http.Request, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType = spec.ContentType
	)
	switch {
	case spec.Form != nil && method == http.MethodGet:
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse target: %w", err)
		}
		q := u.Query()
		for k, vs := range spec.Form {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	case spec.Form != nil:
		form := cloneValues(spec.Form)
		if isStateChanging(method) {
			form.Set(c.cfg.TokenField, session.Token)
		}
		body = bytes.NewReader([]byte(form.Encode()))
		contentType = "application/x-www-form-urlencoded"
	case spec.Body != nil:
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for name, values := range spec.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
	req.Header.Set("Cookie", session.Cookies.Header())
	req.Header.Set(c.cfg.TokenHeader, session.Token)

	return req, nil
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
