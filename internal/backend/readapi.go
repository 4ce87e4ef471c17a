package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ReadAPI issues basic-auth GET requests against the read API. It does not
// use the console session at all.
type ReadAPI struct {
	cfg    Config
	rt     *roundTripper
	logger *slog.Logger
}

// NewReadAPI creates a read API client.
func NewReadAPI(cfg Config) (*ReadAPI, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.ReadUsername == "" {
		return nil, fmt.Errorf("read API credentials are required")
	}

	return &ReadAPI{
		cfg:    cfg,
		rt:     newRoundTripper(cfg.Transport, cfg.RequestTimeout),
		logger: cfg.Logger.With("component", "read_api"),
	}, nil
}

// Get fetches path (relative to the read API root) with the given query.
func (r *ReadAPI) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	target := r.cfg.ReadAPIURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Op: "read", Target: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.SetBasicAuth(r.cfg.ReadUsername, r.cfg.ReadPassword)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, body, err := r.rt.do(ctx, req)
	if err != nil {
		r.cfg.Observer.RequestFinished("read", 0, time.Since(start))
		return nil, &Error{Op: "read", Target: path, Err: err}
	}
	r.cfg.Observer.RequestFinished("read", resp.StatusCode, time.Since(start))

	r.logger.Debug("read API request", "path", path, "status", resp.StatusCode)

	out, err := classify(resp, body)
	if err != nil {
		return nil, &Error{Op: "read", Target: path, Err: err}
	}
	return out, nil
}
