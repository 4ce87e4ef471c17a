package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "task timeout too short",
			config:  Config{TaskTimeout: 10 * time.Millisecond, ShutdownTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "shutdown timeout too short",
			config:  Config{TaskTimeout: time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent error", NewPermanentError(context.Canceled), true},
		{"wrapped permanent", errors.Join(errors.New("x"), NewPermanentError(context.Canceled)), true},
		{"regular error", context.Canceled, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// countingTask counts runs and returns err from the given run onward.
type countingTask struct {
	name     string
	interval time.Duration
	runs     atomic.Int32
	failAt   int32
	err      error
}

func (c *countingTask) Name() string            { return c.name }
func (c *countingTask) Interval() time.Duration { return c.interval }

func (c *countingTask) Run(ctx context.Context) error {
	n := c.runs.Add(1)
	if c.err != nil && n >= c.failAt {
		return c.err
	}
	return nil
}

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	w, err := New(Config{TaskTimeout: time.Second, ShutdownTimeout: time.Second, RunOnStart: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return w
}

func TestWorker_RunsTasksPeriodically(t *testing.T) {
	w := newTestWorker(t)
	task := &countingTask{name: "tick", interval: 10 * time.Millisecond}
	require.NoError(t, w.Register(task))

	w.Start(context.Background())
	assert.Eventually(t, func() bool { return task.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	w.Stop()

	after := task.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, task.runs.Load(), "no runs after Stop")
}

func TestWorker_PermanentErrorStopsTask(t *testing.T) {
	w := newTestWorker(t)
	task := &countingTask{name: "doomed", interval: 5 * time.Millisecond, failAt: 2, err: NewPermanentError(errors.New("table missing"))}
	require.NoError(t, w.Register(task))

	w.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	assert.Equal(t, int32(2), task.runs.Load())
}

func TestWorker_TransientErrorKeepsRunning(t *testing.T) {
	w := newTestWorker(t)
	task := &countingTask{name: "flaky", interval: 5 * time.Millisecond, failAt: 1, err: errors.New("timeout")}
	require.NoError(t, w.Register(task))

	w.Start(context.Background())
	assert.Eventually(t, func() bool { return task.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestWorker_Register(t *testing.T) {
	w := newTestWorker(t)
	require.NoError(t, w.Register(&countingTask{name: "a", interval: time.Second}))

	assert.Error(t, w.Register(&countingTask{name: "a", interval: time.Second}), "duplicate name")
	assert.Error(t, w.Register(&countingTask{name: "b"}), "zero interval")
}
