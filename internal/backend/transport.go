package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 32 << 20

// roundTripper sends single requests with redirects disabled and a fixed
// per-request bound. The body is read inside the bound and closed before
// returning, so a timeout never leaves a connection dangling.
type roundTripper struct {
	client  *http.Client
	timeout time.Duration
}

func newRoundTripper(transport http.RoundTripper, timeout time.Duration) *roundTripper {
	return &roundTripper{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

// do executes req and returns the response with its fully read body.
func (rt *roundTripper) do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	resp, err := rt.client.Do(req.WithContext(callCtx))
	if err != nil {
		return nil, nil, rt.mapError(ctx, callCtx, req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, rt.mapError(ctx, callCtx, req, err)
	}
	return resp, body, nil
}

// mapError turns the expiry of our own bound into a TimeoutError. A
// cancelled or expired parent context is reported as is.
func (rt *roundTripper) mapError(parent, callCtx context.Context, req *http.Request, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Bound: rt.timeout, Target: req.Method + " " + req.URL.Redacted()}
	}
	return fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
}

// isRedirect reports whether the status is a 3xx redirect.
func isRedirect(resp *http.Response) bool {
	return resp.StatusCode >= 300 && resp.StatusCode < 400
}
