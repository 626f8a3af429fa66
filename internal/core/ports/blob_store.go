package ports

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBlobNotFound is returned by BlobStore.Open when nothing is persisted.
var ErrBlobNotFound = errors.New("blob not found")

// Blob is an open, readable snapshot of the persisted bytes.
type Blob interface {
	io.ReadCloser
	// Size is the total length of the blob when it was opened.
	Size() int64
	// ModTime is the last time the blob was written.
	ModTime() time.Time
}

// BlobStore persists exactly one named blob at a fixed location.
// Writes fully replace the previous contents and are not required to be atomic.
type BlobStore interface {
	Open(ctx context.Context) (Blob, error)
	Create(ctx context.Context) (io.WriteCloser, error)
	// Remove deletes the blob; absence is not an error.
	Remove(ctx context.Context) error
	// Location describes where the blob lives, for diagnostics.
	Location() string
}
