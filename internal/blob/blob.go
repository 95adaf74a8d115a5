// Package blob stores uploaded media (voice recordings) in an S3-compatible bucket.
package blob

import (
	"context"
	"io"
	"time"
)

// Object describes a stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the blob storage used by the dispatcher and the orphan sweep.
type Store interface {
	// Put uploads r under key and returns its public URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	// URL is the public URL of key. KeyFromURL is its inverse.
	URL(key string) string
	KeyFromURL(url string) (string, bool)
}
