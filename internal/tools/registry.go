package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/hacbridge/internal/audit"
	"github.com/DukeRupert/hacbridge/internal/domain"
	"github.com/DukeRupert/hacbridge/internal/metrics"
)

// auditTimeout bounds recording one audit entry after the tool returned.
const auditTimeout = 5 * time.Second

// Info describes a registered tool for listings.
type Info struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"input_schema"`
}

// Result is the outcome of one successful invocation.
type Result struct {
	InvocationID uuid.UUID `json:"invocation_id"`
	Tool         string    `json:"tool"`
	DurationMs   int64     `json:"duration_ms"`
	Data         any       `json:"data"`
}

// Registry holds tools by name and runs them with metrics and auditing.
type Registry struct {
	logger   *slog.Logger
	recorder audit.Recorder

	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry. A nil recorder disables auditing.
func NewRegistry(logger *slog.Logger, recorder audit.Recorder) *Registry {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Registry{
		logger:   logger.With("component", "tools"),
		recorder: recorder,
		tools:    make(map[string]Tool),
	}
}

// Register adds tools. Names must be unique.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if _, dup := r.tools[t.Name()]; dup {
			return fmt.Errorf("tool %q registered twice", t.Name())
		}
		r.tools[t.Name()] = t
	}
	return nil
}

// Restrict keeps only the tools whose name matches one of patterns
// (glob syntax, e.g. "get_*"). An empty list keeps everything.
func (r *Registry) Restrict(patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}

	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimSpace(p))
		if err != nil {
			return domain.Invalid("tools.restrict", "invalid tool pattern "+p+": "+err.Error())
		}
		globs = append(globs, g)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		if !matchesAny(globs, name) {
			delete(r.tools, name)
		}
	}
	return nil
}

func matchesAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// List returns every registered tool sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	title := cases.Title(language.English)
	infos := make([]Info, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, Info{
			Name:        t.Name(),
			Title:       title.String(strings.ReplaceAll(t.Name(), "_", " ")),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Invoke runs the named tool with args.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NotFound("tools.invoke", "tool", name)
	}

	id := uuid.New()
	start := time.Now()
	data, err := t.Execute(ctx, args)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	metrics.ToolFinished(name, outcome, elapsed)
	r.record(ctx, audit.Entry{
		ID:        id,
		Tool:      name,
		Args:      args,
		Outcome:   outcome,
		Error:     errorText(err),
		Duration:  elapsed,
		StartedAt: start,
	})

	logger := r.logger.With("tool", name, "invocation_id", id, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		logger.Info("tool failed", "outcome", outcome, "error", err)
		return nil, err
	}
	logger.Info("tool finished")

	return &Result{
		InvocationID: id,
		Tool:         name,
		DurationMs:   elapsed.Milliseconds(),
		Data:         data,
	}, nil
}

// record writes an audit entry even when the caller already went away.
func (r *Registry) record(ctx context.Context, e audit.Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := r.recorder.Record(ctx, e); err != nil {
		r.logger.Warn("audit record failed", "tool", e.Tool, "error", err)
	}
}

// outcomeOf labels an invocation result: "ok", "canceled" or the domain code.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return domain.ErrorCode(err)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
