package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/hacbridge/internal/backend"
	"github.com/DukeRupert/hacbridge/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
	}
	return body
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("tools.flexible_search", "query", "is required")

	req := httptest.NewRequest("POST", "/tools/flexible_search", nil)
	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, req, discardLogger(), ve)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "tools.flexible_search") {
		t.Errorf("response exposes internal operation name: %s", rec.Body.String())
	}

	body := decodeError(t, rec)
	if body.Error.Code != domain.EINVALID {
		t.Errorf("expected code %q, got %q", domain.EINVALID, body.Error.Code)
	}
	if body.Error.Fields["query"] != "is required" {
		t.Errorf("expected field error for query, got %v", body.Error.Fields)
	}
}

func TestErrorResponse_WrappedValidationError(t *testing.T) {
	err := domain.Wrap(domain.NewValidationError("tools.get_order", "code", "is required"), domain.EINVALID, "tools.get_order", "bad input")

	req := httptest.NewRequest("POST", "/tools/get_order", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), err)

	body := decodeError(t, rec)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if _, ok := body.Error.Fields["code"]; !ok {
		t.Errorf("expected field errors, got %+v", body.Error)
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	dbErr := errors.New(`pq: relation "tool_invocations" does not exist`)
	err := domain.Internal(dbErr, "audit.Recent", "failed to list invocations")

	req := httptest.NewRequest("GET", "/invocations", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), err)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	raw := rec.Body.String()
	for _, leak := range []string{"tool_invocations", "pq:", "audit.Recent", "failed to list"} {
		if strings.Contains(raw, leak) {
			t.Errorf("response exposes %q: %s", leak, raw)
		}
	}
	if !strings.Contains(raw, "internal error occurred") {
		t.Errorf("expected generic message, got: %s", raw)
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	req := httptest.NewRequest("POST", "/tools/get_product", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), errors.New("dial tcp 10.0.0.5:9002: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("response exposes internal address: %s", rec.Body.String())
	}
	if got := decodeError(t, rec).Error.Code; got != domain.EINTERNAL {
		t.Errorf("expected code %q, got %q", domain.EINTERNAL, got)
	}
}

func TestErrorResponse_NotFound(t *testing.T) {
	req := httptest.NewRequest("POST", "/tools/missing", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), domain.NotFound("tools.invoke", "tool", "missing"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error.Message != `tool "missing" not found` {
		t.Errorf("unexpected message: %q", body.Error.Message)
	}
	if body.Error.Kind != "" {
		t.Errorf("expected no kind for a local error, got %q", body.Error.Kind)
	}
}

// =============================================================================
// Backend Failure Mapping
// =============================================================================

func TestErrorResponse_BackendFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantKind   string
	}{
		{
			name:       "rejected login",
			err:        domain.Wrap(&backend.Error{Op: "login", Err: backend.ErrAuthentication}, domain.EUPSTREAMAUTH, "tools.flexible_search", "console login failed"),
			wantStatus: http.StatusBadGateway,
			wantCode:   domain.EUPSTREAMAUTH,
			wantKind:   backend.KindAuthentication,
		},
		{
			name:       "remote error",
			err:        domain.Wrap(&backend.Error{Op: "call", Err: &backend.RemoteError{StatusCode: 500, Body: "boom"}}, domain.EUPSTREAM, "tools.get_product", "backend returned status 500"),
			wantStatus: http.StatusBadGateway,
			wantCode:   domain.EUPSTREAM,
			wantKind:   backend.KindRemote,
		},
		{
			name:       "timeout",
			err:        domain.Wrap(&backend.Error{Op: "call", Err: &backend.TimeoutError{Bound: time.Second}}, domain.ETIMEOUT, "tools.execute_groovy", "backend did not answer in time"),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   domain.ETIMEOUT,
			wantKind:   backend.KindTimeout,
		},
		{
			name:       "storage not configured",
			err:        domain.Errorf(domain.EUNAVAILABLE, "tools.export_impex", "artifact storage is not configured"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   domain.EUNAVAILABLE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/tools/x", nil)
			rec := httptest.NewRecorder()
			ErrorResponse(rec, req, discardLogger(), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			body := decodeError(t, rec)
			if body.Error.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, body.Error.Code)
			}
			if body.Error.Kind != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, body.Error.Kind)
			}
			if strings.Contains(rec.Body.String(), "boom") {
				t.Errorf("response exposes the backend body: %s", rec.Body.String())
			}
		})
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[string]int{
		domain.EINVALID:      http.StatusBadRequest,
		domain.EUNAUTHORIZED: http.StatusUnauthorized,
		domain.ENOTFOUND:     http.StatusNotFound,
		domain.ETOOLARGE:     http.StatusRequestEntityTooLarge,
		domain.ERATELIMIT:    http.StatusTooManyRequests,
		domain.EUPSTREAMAUTH: http.StatusBadGateway,
		domain.EUPSTREAM:     http.StatusBadGateway,
		domain.EUNAVAILABLE:  http.StatusServiceUnavailable,
		domain.ETIMEOUT:      http.StatusGatewayTimeout,
		domain.EINTERNAL:     http.StatusInternalServerError,
		"something_else":     http.StatusInternalServerError,
	}

	for code, want := range tests {
		if got := ErrorCodeToHTTPStatus(code); got != want {
			t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", code, got, want)
		}
	}
}
