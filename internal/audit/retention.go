package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Pruner deletes entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionTask keeps the audit log within a retention period. It runs as a
// periodic worker task.
type RetentionTask struct {
	pruner    Pruner
	retention time.Duration
	every     time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetentionTask prunes entries older than retention once per every.
func NewRetentionTask(pruner Pruner, retention, every time.Duration, logger *slog.Logger) (*RetentionTask, error) {
	if retention <= 0 {
		return nil, errors.New("audit retention must be positive")
	}
	if every <= 0 {
		every = time.Hour
	}
	return &RetentionTask{
		pruner:    pruner,
		retention: retention,
		every:     every,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (t *RetentionTask) Name() string            { return "audit_retention" }
func (t *RetentionTask) Interval() time.Duration { return t.every }

func (t *RetentionTask) Run(ctx context.Context) error {
	cutoff := t.now().Add(-t.retention)
	n, err := t.pruner.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.Info("pruned audit entries", "count", n, "cutoff", cutoff)
	}
	return nil
}
