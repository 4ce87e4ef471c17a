package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"

	"github.com/DukeRupert/hacbridge/internal/audit"
	"github.com/DukeRupert/hacbridge/internal/backend"
)

// fakeConsole records console calls and answers with a fixed response.
type fakeConsole struct {
	endpoint string
	spec     backend.RequestSpec
	calls    int

	reply any
	err   error
}

func (f *fakeConsole) Call(ctx context.Context, endpoint string, spec backend.RequestSpec) (*backend.Response, error) {
	f.calls++
	f.endpoint = endpoint
	f.spec = spec
	if f.err != nil {
		return nil, f.err
	}
	return jsonResponse(f.reply), nil
}

// fakeReadAPI records read calls.
type fakeReadAPI struct {
	path  string
	query url.Values

	resp *backend.Response
	err  error
}

func (f *fakeReadAPI) Get(ctx context.Context, path string, query url.Values) (*backend.Response, error) {
	f.path = path
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func jsonResponse(v any) *backend.Response {
	body, _ := json.Marshal(v)
	var data any
	_ = json.Unmarshal(body, &data)
	return &backend.Response{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        body,
		Data:        data,
	}
}

// memoryRecorder keeps audit entries in memory.
type memoryRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memoryRecorder) Record(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryRecorder) Recent(context.Context, string, int) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.entries...), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
