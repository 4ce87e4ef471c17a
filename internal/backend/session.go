package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Session is an authenticated console session: the cookies collected during
// login and the anti-forgery token bound to them. A Session is never
// modified after it is built; the Authenticator replaces it whole.
type Session struct {
	Cookies       CookieSet
	Token         string
	EstablishedAt time.Time
}

// SessionStatus describes the cached session without exposing secrets.
type SessionStatus struct {
	Authenticated bool      `json:"authenticated"`
	CookieNames   []string  `json:"cookie_names,omitempty"`
	EstablishedAt time.Time `json:"established_at,omitzero"`
	Logins        int64     `json:"logins"`
}

// Authenticator performs the console login protocol and caches the
// resulting Session. Each Authenticator owns its own cache, so independent
// instances never share state.
type Authenticator struct {
	cfg     Config
	rt      *roundTripper
	scraper *tokenScraper
	logger  *slog.Logger

	session atomic.Pointer[Session]
	logins  atomic.Int64
	group   singleflight.Group
}

// NewAuthenticator creates an Authenticator for the configured console.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("console credentials are required")
	}

	return &Authenticator{
		cfg:     cfg,
		rt:      newRoundTripper(cfg.Transport, cfg.RequestTimeout),
		scraper: newTokenScraper(cfg.TokenField),
		logger:  cfg.Logger.With("component", "authenticator"),
	}, nil
}

// EnsureSession returns the cached session, logging in first if there is
// none. A cached session is returned without any network I/O; staleness is
// only discovered when a request using it is redirected to the login page.
//
// Concurrent callers share one in-flight login. The login itself is detached
// from the caller's cancellation so one caller giving up does not fail the
// others; each step is still bounded by the request timeout.
func (a *Authenticator) EnsureSession(ctx context.Context) (*Session, error) {
	if s := a.session.Load(); s != nil {
		return s, nil
	}

	ch := a.group.DoChan("login", func() (any, error) {
		s, err := a.login(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		a.session.Store(s)
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached session. It does not log in again; the next
// EnsureSession call does.
func (a *Authenticator) Invalidate() {
	if a.session.Swap(nil) != nil {
		a.logger.Debug("console session invalidated")
	}
}

// Status reports whether a session is cached and which cookies it carries.
func (a *Authenticator) Status() SessionStatus {
	st := SessionStatus{Logins: a.logins.Load()}
	if s := a.session.Load(); s != nil {
		st.Authenticated = true
		st.CookieNames = s.Cookies.Names()
		st.EstablishedAt = s.EstablishedAt
	}
	return st
}

// =============================================================================
// Login Protocol
// =============================================================================

// login runs the three round trips of the console login form:
//
//  1. GET the console root (following one redirect) and scrape the
//     pre-authentication token.
//  2. POST the credentials with that token and expect a redirect away from
//     the login page.
//  3. GET the landing page and scrape the post-authentication token.
func (a *Authenticator) login(ctx context.Context) (s *Session, err error) {
	start := time.Now()
	defer func() {
		a.logins.Add(1)
		a.cfg.Observer.LoginFinished(time.Since(start), err)
	}()

	loginPage, cookies, err := a.fetchLoginPage(ctx)
	if err != nil {
		return nil, &Error{Op: "login", Target: a.cfg.consoleURL("/"), Err: err}
	}

	preToken, ok := a.scraper.scrape(loginPage)
	if !ok {
		return nil, &Error{Op: "login", Target: a.cfg.consoleURL("/"), Err: ErrAuthProtocol}
	}

	landing, cookies, err := a.submitCredentials(ctx, preToken, cookies)
	if err != nil {
		return nil, &Error{Op: "login", Target: a.cfg.consoleURL(loginSubmitPath), Err: err}
	}

	page, cookies, err := a.get(ctx, landing, cookies)
	if err != nil {
		return nil, &Error{Op: "login", Target: landing, Err: err}
	}

	token, ok := a.scraper.scrape(page)
	if !ok {
		return nil, &Error{Op: "login", Target: landing, Err: ErrAuthProtocol}
	}

	a.logger.Debug("console login succeeded",
		"cookies", cookies.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Session{
		Cookies:       cookies,
		Token:         token,
		EstablishedAt: time.Now(),
	}, nil
}

// fetchLoginPage loads the console root. The console usually answers with a
// redirect to its login page, which is followed once.
func (a *Authenticator) fetchLoginPage(ctx context.Context) ([]byte, CookieSet, error) {
	resp, body, err := a.send(ctx, http.MethodGet, a.cfg.consoleURL("/"), nil, CookieSet{})
	if err != nil {
		return nil, CookieSet{}, err
	}
	cookies := CookieSet{}.MergeResponse(resp)

	if isRedirect(resp) {
		next, err := resp.Location()
		if err != nil {
			return nil, cookies, fmt.Errorf("login page redirect: %w", err)
		}
		return a.get(ctx, next.String(), cookies)
	}

	if resp.StatusCode >= 400 {
		return nil, cookies, &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, cookies, nil
}

// submitCredentials posts the login form and returns the redirect target.
func (a *Authenticator) submitCredentials(ctx context.Context, token string, cookies CookieSet) (string, CookieSet, error) {
	form := url.Values{}
	form.Set("j_username", a.cfg.Username)
	form.Set("j_password", a.cfg.Password)
	form.Set(a.cfg.TokenField, token)

	resp, _, err := a.send(ctx, http.MethodPost, a.cfg.consoleURL(loginSubmitPath), form, cookies)
	if err != nil {
		return "", cookies, err
	}
	cookies = cookies.MergeResponse(resp)

	if !isRedirect(resp) {
		return "", cookies, ErrAuthentication
	}
	next, err := resp.Location()
	if err != nil || strings.Contains(strings.ToLower(next.String()), "error") {
		return "", cookies, ErrAuthentication
	}
	return next.String(), cookies, nil
}

// get loads target carrying cookies and merges the response cookies.
func (a *Authenticator) get(ctx context.Context, target string, cookies CookieSet) ([]byte, CookieSet, error) {
	resp, body, err := a.send(ctx, http.MethodGet, target, nil, cookies)
	if err != nil {
		return nil, cookies, err
	}
	cookies = cookies.MergeResponse(resp)
	if resp.StatusCode >= 400 {
		return nil, cookies, &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, cookies, nil
}

func (a *Authenticator) send(ctx context.Context, method, target string, form url.Values, cookies CookieSet) (*http.Response, []byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookies.Len() > 0 {
		req.Header.Set("Cookie", cookies.Header())
	}

	a.logger.Debug("login step", "method", method, "url", req.URL.Redacted())
	return a.rt.do(ctx, req)
}
