// Package tools is the catalog of named operations exposed by the bridge.
// Each tool validates its JSON arguments, issues one or more backend calls
// and shapes the result into a JSON-friendly value.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/DukeRupert/hacbridge/internal/backend"
	"github.com/DukeRupert/hacbridge/internal/domain"
)

// Tool is one named operation.
type Tool interface {
	Name() string
	Description() string

	// Schema is a JSON Schema object describing the arguments.
	Schema() map[string]any

	// Execute runs the tool. Errors are *domain.Error or
	// *domain.ValidationError values.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Console is the session-authenticated request primitive.
type Console interface {
	Call(ctx context.Context, endpoint string, spec backend.RequestSpec) (*backend.Response, error)
}

// ReadAPI is the basic-auth read primitive.
type ReadAPI interface {
	Get(ctx context.Context, path string, query url.Values) (*backend.Response, error)
}

// decodeArgs strictly decodes raw into v. An empty body decodes as {}.
func decodeArgs(op string, raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid(op, fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// backendError maps a backend failure onto an application error code.
func backendError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(err, domain.ETIMEOUT, op, "request deadline exceeded")
	}

	switch backend.Kind(err) {
	case backend.KindAuthentication:
		return domain.Wrap(err, domain.EUPSTREAMAUTH, op, "backend rejected the configured credentials")
	case backend.KindAuthProtocol:
		return domain.Wrap(err, domain.EUPSTREAMAUTH, op, "backend login page did not match the expected markup")
	case backend.KindSessionExpired:
		return domain.Wrap(err, domain.EUPSTREAMAUTH, op, "backend session expired again after re-login")
	case backend.KindTimeout:
		return domain.Wrap(err, domain.ETIMEOUT, op, err.Error())
	case backend.KindRemote:
		var remote *backend.RemoteError
		errors.As(err, &remote)
		if remote.StatusCode == http.StatusNotFound {
			return domain.Wrap(err, domain.ENOTFOUND, op, "backend resource not found")
		}
		return domain.Wrap(err, domain.EUPSTREAM, op, fmt.Sprintf("backend returned status %d", remote.StatusCode))
	case backend.KindUnexpectedResponse:
		return domain.Wrap(err, domain.EUPSTREAM, op, "backend returned an HTML page where data was expected")
	default:
		return domain.Internal(err, op, "backend call failed")
	}
}
