package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// ContentTypeImpEx is used for ImpEx exports. mime has no entry for the
// extension on most systems.
const ContentTypeImpEx = "text/plain; charset=utf-8"

var extensionTypes = map[string]string{
	".impex": ContentTypeImpEx,
	".csv":   "text/csv; charset=utf-8",
	".json":  "application/json",
	".txt":   "text/plain; charset=utf-8",
}

// DetectContentType returns providedType when set, otherwise a type derived
// from the key's extension, falling back to application/octet-stream.
func DetectContentType(providedType, key string) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(key))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
