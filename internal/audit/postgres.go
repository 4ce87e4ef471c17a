package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const insertInvocation = `-- name: InsertInvocation :exec
INSERT INTO tool_invocations (id, tool, arguments, outcome, error, duration_ms, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const listInvocations = `-- name: ListInvocations :many
SELECT id, tool, arguments, outcome, error, duration_ms, started_at
FROM tool_invocations
WHERE ($1::text = '' OR tool = $1)
ORDER BY started_at DESC
LIMIT $2
`

const deleteInvocationsBefore = `-- name: DeleteInvocationsBefore :execrows
DELETE FROM tool_invocations
WHERE started_at < $1
`

// PostgresRecorder writes entries to the tool_invocations table.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder expects the schema from internal.RunMigrations.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, insertInvocation,
		e.ID,
		e.Tool,
		storedArgs(e.Args),
		e.Outcome,
		e.Error,
		e.DurationMs(),
		e.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// Recent lists the newest entries, optionally for one tool.
func (r *PostgresRecorder) Recent(ctx context.Context, tool string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, listInvocations, tool, limit)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			args       pqtype.NullRawMessage
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &e.Tool, &args, &e.Outcome, &e.Error, &durationMs, &e.StartedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if args.Valid {
			e.Args = args.RawMessage
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	return entries, nil
}

// Prune deletes entries that started before cutoff and returns how many
// were removed.
func (r *PostgresRecorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteInvocationsBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	return res.RowsAffected()
}

// storedArgs returns the JSONB value for args. Oversized or invalid
// documents are stored as NULL.
func storedArgs(args json.RawMessage) pqtype.NullRawMessage {
	if len(args) == 0 || len(args) > maxStoredArgs || !json.Valid(args) {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: args, Valid: true}
}
