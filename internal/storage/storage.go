// Package storage defines the Provider interface for object storage backends.
package storage

import (
	"context"
	"io"
)

// ProgressFunc receives the running byte count of an in-flight upload.
type ProgressFunc func(uploadedBytes int64)

// Provider abstracts object storage operations.
type Provider interface {
	// Upload writes data under key and returns the consumer-facing URL.
	// progress, if non-nil, is called as bytes are written.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
	// Delete removes the object at key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error
	// ResolveURL returns a consumer-accessible URL for an existing key.
	ResolveURL(ctx context.Context, key string) (string, error)
}
