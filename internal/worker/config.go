package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background task worker.
type Config struct {
	// TaskTimeout is the maximum time a single run of a task may take.
	// Default: 5 minutes
	TaskTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for running tasks.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// RunOnStart runs every task once immediately instead of waiting a
	// full interval.
	RunOnStart bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		TaskTimeout:     5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		RunOnStart:      true,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.TaskTimeout < time.Second {
		return fmt.Errorf("task timeout must be at least 1 second, got %v", c.TaskTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
