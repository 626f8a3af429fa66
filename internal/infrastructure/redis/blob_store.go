package redis

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/go-redis/redis/v8"
)

const (
	fieldData    = "data"
	fieldModTime = "mtime"
)

// BlobStore implements ports.BlobStore as a Redis hash holding the bytes and
// their write time, so several clients on one host can share a ticket cache.
type BlobStore struct {
	r   redis.Cmdable
	key string
	// ttl lets Redis drop entries nobody reloads; 0 keeps them forever.
	ttl time.Duration
	now func() time.Time
}

// NewBlobStore creates a new Redis-backed blob store under key.
func NewBlobStore(r redis.Cmdable, key string, ttl time.Duration) *BlobStore {
	return &BlobStore{r: r, key: key, ttl: ttl, now: time.Now}
}

type redisBlob struct {
	*bytes.Reader
	size    int64
	modTime time.Time
}

func (b *redisBlob) Close() error       { return nil }
func (b *redisBlob) Size() int64        { return b.size }
func (b *redisBlob) ModTime() time.Time { return b.modTime }

// Open implements BlobStore.Open.
func (s *BlobStore) Open(ctx context.Context) (ports.Blob, error) {
	vals, err := s.r.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	data, ok := vals[fieldData]
	if !ok {
		return nil, ports.ErrBlobNotFound
	}
	// A missing or garbled write time reads as the zero time, which is always stale.
	var modTime time.Time
	if ns, err := strconv.ParseInt(vals[fieldModTime], 10, 64); err == nil {
		modTime = time.Unix(0, ns)
	}
	b := []byte(data)
	return &redisBlob{Reader: bytes.NewReader(b), size: int64(len(b)), modTime: modTime}, nil
}

type blobWriter struct {
	ctx   context.Context
	store *BlobStore
	buf   bytes.Buffer
}

func (w *blobWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *blobWriter) Close() error {
	s := w.store
	pipe := s.r.TxPipeline()
	pipe.Del(w.ctx, s.key)
	pipe.HSet(w.ctx, s.key, fieldData, w.buf.Bytes(), fieldModTime, strconv.FormatInt(s.now().UnixNano(), 10))
	if s.ttl > 0 {
		pipe.Expire(w.ctx, s.key, s.ttl)
	}
	_, err := pipe.Exec(w.ctx)
	return err
}

// Create implements BlobStore.Create. Bytes are sent to Redis on Close.
func (s *BlobStore) Create(ctx context.Context) (io.WriteCloser, error) {
	return &blobWriter{ctx: ctx, store: s}, nil
}

// Remove implements BlobStore.Remove.
func (s *BlobStore) Remove(ctx context.Context) error {
	return s.r.Del(ctx, s.key).Err()
}

// Location implements BlobStore.Location.
func (s *BlobStore) Location() string { return "redis:" + s.key }
