// Package storage keeps the artifacts produced by catalog operations, such as
// ImpEx exports, so callers can download them after the operation returns.
//
// Two providers exist:
//   - LocalStorage: a directory on disk, served under /files/
//   - R2Storage: an S3-compatible bucket (Cloudflare R2)
package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is implemented by every artifact provider.
type Storage interface {
	// Put stores data at key. ErrKeyExists is returned when the key is taken
	// and opts.Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get returns the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a download URL for key. A zero expires asks for a
	// permanent URL when the provider has one.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is detected from the key when empty.
	ContentType string

	// MaxSize rejects larger objects with ErrTooLarge. Zero means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object.
	Overwrite bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./storage".
	BasePath string

	// BaseURL is the public prefix for downloads, e.g. "http://localhost:8080/files".
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL serves permanent links when set. Presigned URLs are used otherwise.
	PublicURL string

	// Region defaults to "auto".
	Region string

	// Endpoint overrides the account endpoint. Used against S3-compatible
	// stand-ins such as MinIO.
	Endpoint string
}

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// =============================================================================
// Key Generation
// =============================================================================

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// ExportKey generates a key for an ImpEx export of the given item type.
// Format: exports/{yyyy-mm-dd}/{itemtype}-{uuid}.impex
func ExportKey(itemType string, now time.Time) string {
	name := strings.Trim(unsafeKeyChars.ReplaceAllString(strings.ToLower(itemType), "-"), "-")
	if name == "" {
		name = "items"
	}
	return fmt.Sprintf("exports/%s/%s-%s.impex", now.UTC().Format("2006-01-02"), name, uuid.New())
}
