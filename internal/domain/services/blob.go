package services

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned by BlobStore.Get for an unknown key
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds file content bytes under an externally chosen key
type BlobStore interface {
	// Put stores size bytes read from r under key, replacing any previous content
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get returns a reader for the content under key (caller closes)
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
