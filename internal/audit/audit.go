// Package audit keeps a record of every tool invocation.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// maxStoredArgs bounds the argument document kept per entry. Larger
// arguments (typically ImpEx payloads) are recorded without their body.
const maxStoredArgs = 64 << 10

// Entry is one tool invocation.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"arguments,omitempty"`
	Outcome   string          `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	Duration  time.Duration   `json:"-"`
	StartedAt time.Time       `json:"started_at"`
}

// DurationMs is the duration in whole milliseconds.
func (e Entry) DurationMs() int64 {
	return e.Duration.Milliseconds()
}

// Recorder stores and lists entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, tool string, limit int) ([]Entry, error)
}

// NopRecorder discards entries. Used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }

func (NopRecorder) Recent(context.Context, string, int) ([]Entry, error) { return []Entry{}, nil }
