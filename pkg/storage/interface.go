package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Read when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Storage defines the interface for blob storage operations.
// The backend (S3-compatible, native MinIO, or local filesystem) is
// selected at startup and opaque to callers.
type Storage interface {
	// Write stores content from the reader with the given key.
	// The size parameter is the expected content size (-1 if unknown).
	// The contentType parameter specifies the MIME type of the content.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key.
	// The caller is responsible for closing the returned ReadCloser.
	// Returns ErrObjectNotFound if the key does not exist.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content with the given key. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if content with the given key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL for accessing the content.
	// For local storage, this returns the file path.
	// For object stores, this returns a presigned URL valid for the
	// specified duration.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Bucket returns the bucket name backing this storage.
	Bucket() string
}
