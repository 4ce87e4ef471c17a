// Package worker runs periodic background tasks alongside the server.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/hacbridge/internal/metrics"
)

// Worker runs each registered task on its own ticker.
type Worker struct {
	tasks  map[string]Task
	config Config
	logger *slog.Logger

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		tasks:  make(map[string]Task),
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Register adds a task. Call this before Start().
func (w *Worker) Register(task Task) error {
	name := task.Name()
	if _, exists := w.tasks[name]; exists {
		return fmt.Errorf("task %q registered twice", name)
	}
	if task.Interval() <= 0 {
		return fmt.Errorf("task %q: interval must be positive", name)
	}
	w.tasks[name] = task
	w.logger.Debug("Registered task", "task", name, "interval", task.Interval())
	return nil
}

// Start launches one goroutine per task. Tasks stop when ctx is canceled
// or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	for _, task := range w.tasks {
		w.wg.Add(1)
		go w.runTask(ctx, task)
	}

	w.logger.Info("Worker started", "tasks", len(w.tasks))
}

// Stop signals all tasks to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some tasks may still be running")
	}
}

// runTask is the loop for one task goroutine.
func (w *Worker) runTask(ctx context.Context, task Task) {
	defer w.wg.Done()

	logger := w.logger.With("task", task.Name())

	if w.config.RunOnStart && !w.runOnce(ctx, task, logger) {
		return
	}

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.runOnce(ctx, task, logger) {
				return
			}
		}
	}
}

// runOnce runs the task with a timeout and reports whether it should keep
// running.
func (w *Worker) runOnce(ctx context.Context, task Task, logger *slog.Logger) bool {
	runCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(runCtx)
	metrics.TaskFinished(task.Name(), err, time.Since(start))

	switch {
	case err == nil:
		return true
	case IsPermanent(err):
		logger.Error("Task failed permanently, will not run again", "error", err)
		return false
	default:
		logger.Error("Task failed", "error", err)
		return true
	}
}
