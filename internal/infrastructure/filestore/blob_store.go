package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/avatarctic/ticket-cache/internal/core/ports"
)

// DefaultPath is where the ticket cache lives when no path is configured.
const DefaultPath = "players/auth.bin"

// BlobStore implements ports.BlobStore on a single file.
// Writes truncate and rewrite the file in place.
type BlobStore struct {
	path string
}

// NewBlobStore creates a file-backed blob store at path.
func NewBlobStore(path string) *BlobStore {
	if path == "" {
		path = DefaultPath
	}
	return &BlobStore{path: path}
}

type fileBlob struct {
	*os.File
	size    int64
	modTime time.Time
}

func (b *fileBlob) Size() int64        { return b.size }
func (b *fileBlob) ModTime() time.Time { return b.modTime }

// Open implements BlobStore.Open.
func (s *BlobStore) Open(ctx context.Context) (ports.Blob, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ports.ErrBlobNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileBlob{File: f, size: info.Size(), modTime: info.ModTime()}, nil
}

// Create implements BlobStore.Create.
func (s *BlobStore) Create(ctx context.Context) (io.WriteCloser, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
}

// Remove implements BlobStore.Remove.
func (s *BlobStore) Remove(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Location implements BlobStore.Location.
func (s *BlobStore) Location() string { return s.path }
