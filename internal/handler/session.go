package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/hacbridge/internal/backend"
	"github.com/DukeRupert/hacbridge/internal/domain"
)

// SessionManager is the part of backend.Authenticator the handler needs.
type SessionManager interface {
	EnsureSession(ctx context.Context) (*backend.Session, error)
	Invalidate()
	Status() backend.SessionStatus
}

// SessionHandler reports and controls the console session.
type SessionHandler struct {
	sessions SessionManager
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers the session routes, each wrapped by protect.
//
// Routes:
// - GET    /session -> Show
// - POST   /session -> Login (establish or reuse a session)
// - DELETE /session -> Logout (drop the cached session)
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("GET /session", protect(http.HandlerFunc(h.Show)))
	mux.Handle("POST /session", protect(http.HandlerFunc(h.Login)))
	mux.Handle("DELETE /session", protect(http.HandlerFunc(h.Logout)))
}

// Show returns the session status. Cookie values and the token are never included.
func (h *SessionHandler) Show(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Status())
}

// Login makes sure a session exists, logging in when none is cached.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.EnsureSession(r.Context()); err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, upstreamCode(err), "handler.session", "console login failed"))
		return
	}
	writeJSON(w, http.StatusOK, h.sessions.Status())
}

// Logout drops the cached session. The next console call logs in again.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Invalidate()
	h.logger.Info("console session invalidated")
	w.WriteHeader(http.StatusNoContent)
}

// upstreamCode picks the domain code for a login failure.
func upstreamCode(err error) string {
	if backend.Kind(err) == backend.KindTimeout {
		return domain.ETIMEOUT
	}
	return domain.EUPSTREAMAUTH
}
