package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strings"
)

// bodyPrefixSize bounds the body excerpt carried by UnexpectedResponseError.
const bodyPrefixSize = 512

var documentMarker = regexp.MustCompile(`(?i)<html`)

// Response is a classified backend response.
type Response struct {
	StatusCode  int
	ContentType string
	Header      http.Header

	// Body is the raw response body.
	Body []byte

	// Data holds the decoded body when the content type is JSON, else nil.
	Data any
}

// JSON reports whether the response carried structured data.
func (r *Response) JSON() bool {
	return r.Data != nil
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// looksLikeLoginRedirect reports whether resp is the console's way of saying
// the session is gone: a redirect whose target is the login page.
func looksLikeLoginRedirect(resp *http.Response) bool {
	if !isRedirect(resp) {
		return false
	}
	return strings.Contains(strings.ToLower(resp.Header.Get("Location")), "login")
}

// classify turns a raw response into a Response or a typed failure.
//
// A markup document is rejected before anything else, whatever the status,
// since the console answers some failures with its login page.
func classify(resp *http.Response, body []byte) (*Response, error) {
	contentType := resp.Header.Get("Content-Type")
	mediaType := mediaTypeOf(contentType)

	if isHTML(mediaType) && containsDocumentMarker(body) {
		return nil, &UnexpectedResponseError{
			ContentType: mediaType,
			BodyPrefix:  string(prefix(body, bodyPrefixSize)),
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	out := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Header:      resp.Header,
		Body:        body,
	}

	if isJSON(mediaType) && len(bytes.TrimSpace(body)) > 0 {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", mediaType, err)
		}
		out.Data = data
	}

	return out, nil
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isHTML(mediaType string) bool {
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// containsDocumentMarker reports whether body is a full HTML document rather
// than a fragment.
func containsDocumentMarker(body []byte) bool {
	return documentMarker.Match(body)
}

func prefix(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
