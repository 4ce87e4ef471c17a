package worker

import (
	"context"
	"errors"
	"time"
)

// Task is a unit of periodic background work.
type Task interface {
	// Name identifies the task in logs and metrics. Must be unique.
	Name() string

	// Interval is the time between runs.
	Interval() time.Duration

	// Run performs one pass. Returning a PermanentError stops the task.
	Run(ctx context.Context) error
}

// PermanentError wraps an error to indicate the task should not run again.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new PermanentError that wraps the given error.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is, or wraps, a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
