package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/hacbridge/internal/audit"
	"github.com/DukeRupert/hacbridge/internal/domain"
	"github.com/DukeRupert/hacbridge/internal/tools"
)

// maxArgsSize bounds a tool argument document.
const maxArgsSize = 16 << 20

const (
	defaultInvocationLimit = 50
	maxInvocationLimit     = 500
)

// ToolHandler exposes the tool registry.
type ToolHandler struct {
	registry *tools.Registry
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewToolHandler creates a ToolHandler. recorder may be audit.NopRecorder.
func NewToolHandler(registry *tools.Registry, recorder audit.Recorder, logger *slog.Logger) *ToolHandler {
	return &ToolHandler{
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes registers the tool routes, each wrapped by protect.
//
// Routes:
// - GET  /tools         -> List
// - POST /tools/{name}  -> Invoke
// - GET  /invocations   -> Invocations
func (h *ToolHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("GET /tools", protect(http.HandlerFunc(h.List)))
	mux.Handle("POST /tools/{name}", protect(http.HandlerFunc(h.Invoke)))
	mux.Handle("GET /invocations", protect(http.HandlerFunc(h.Invocations)))
}

// List returns the catalog.
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.registry.List()})
}

// Invoke runs one tool with the request body as arguments.
func (h *ToolHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxArgsSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, "handler.invoke", "arguments exceed %d bytes", maxArgsSize))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.invoke", "could not read request body"))
		return
	}
	if len(args) > 0 && !json.Valid(args) {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.invoke", "request body must be a JSON object"))
		return
	}

	result, err := h.registry.Invoke(r.Context(), name, args)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Invocations lists recent audit entries, optionally filtered by ?tool=.
func (h *ToolHandler) Invocations(w http.ResponseWriter, r *http.Request) {
	limit := defaultInvocationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxInvocationLimit {
			ErrorResponse(w, r, h.logger, domain.NewValidationError("handler.invocations", "limit", "must be between 1 and "+strconv.Itoa(maxInvocationLimit)))
			return
		}
		limit = n
	}

	entries, err := h.recorder.Recent(r.Context(), r.URL.Query().Get("tool"), limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "handler.invocations", "failed to list invocations"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invocations": entries})
}
