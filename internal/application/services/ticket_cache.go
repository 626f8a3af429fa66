package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCookieKeySize = 8
	DefaultStaleAfter    = 60 * time.Second
)

// TicketCacheConfig groups configuration parameters for the ticket cache.
type TicketCacheConfig struct {
	CookieKeySize int
	StaleAfter    time.Duration
	// Now overrides the clock used for staleness checks.
	Now func() time.Time
}

// TicketCache keeps one app ticket and cookie key in memory and mirrors it to a BlobStore.
// It is not safe for concurrent use.
type TicketCache struct {
	store      ports.BlobStore
	entry      ticket.CachedTicket
	keySize    int
	staleAfter time.Duration
	now        func() time.Time
	metrics    ports.TicketMetrics
	logger     *logrus.Logger
}

func NewTicketCache(store ports.BlobStore, cfg *TicketCacheConfig, metrics ports.TicketMetrics, logger *logrus.Logger) *TicketCache {
	ks := DefaultCookieKeySize
	sa := DefaultStaleAfter
	now := time.Now
	if cfg != nil {
		if cfg.CookieKeySize > 0 {
			ks = cfg.CookieKeySize
		}
		if cfg.StaleAfter > 0 {
			sa = cfg.StaleAfter
		}
		if cfg.Now != nil {
			now = cfg.Now
		}
	}
	return &TicketCache{store: store, keySize: ks, staleAfter: sa, now: now, metrics: metrics, logger: logger}
}

// OpenTicketCache builds a cache and immediately tries to load the persisted blob.
// A failed initial load leaves an empty cache and is not an error.
func OpenTicketCache(ctx context.Context, store ports.BlobStore, cfg *TicketCacheConfig, metrics ports.TicketMetrics, logger *logrus.Logger) *TicketCache {
	c := NewTicketCache(store, cfg, metrics, logger)
	if err := c.Reload(ctx); err != nil && c.logger != nil {
		c.logger.WithFields(logrus.Fields{"location": store.Location(), "code": ticket.ResultCode(err)}).WithError(err).Debug("ticket cache: initial load skipped")
	}
	return c
}

func (c *TicketCache) IsValid() bool { return c.entry.Valid() }

func (c *TicketCache) Location() string { return c.store.Location() }

func (c *TicketCache) Reload(ctx context.Context) error {
	blob, err := c.store.Open(ctx)
	if err != nil {
		c.Clear()
		if !errors.Is(err, ports.ErrBlobNotFound) && c.logger != nil {
			c.logger.WithField("location", c.store.Location()).WithError(err).Warn("ticket cache: could not open blob")
		}
		c.observe("not_found")
		return ticket.ErrCacheNotFound
	}

	if age := c.now().Sub(blob.ModTime()); age > c.staleAfter {
		c.discard(ctx, blob)
		c.observe("stale")
		if c.logger != nil {
			c.logger.WithFields(logrus.Fields{"location": c.store.Location(), "age": age.String()}).Debug("ticket cache: discarded stale blob")
		}
		return ticket.ErrCacheStale
	}

	if len(c.entry.CookieKey) != c.keySize {
		c.entry.CookieKey = make([]byte, c.keySize)
	}
	if _, err := io.ReadFull(blob, c.entry.CookieKey); err != nil {
		c.discard(ctx, blob)
		c.observe("corrupt_cookie")
		return ticket.ErrCorruptCookie
	}

	remaining := blob.Size() - int64(c.keySize)
	if remaining < 0 {
		remaining = 0
	}
	buf := c.entry.AppTicket.Grow(int(remaining))
	if _, err := io.ReadFull(blob, buf); err != nil {
		c.discard(ctx, blob)
		c.observe("corrupt_ticket")
		return ticket.ErrCorruptTicket
	}
	_ = blob.Close()

	if !c.entry.Valid() {
		c.observe("invalid")
		return ticket.ErrCacheInvalid
	}
	c.observe("reloaded")
	return nil
}

// discard closes the blob, deletes it and clears the in-memory cache.
func (c *TicketCache) discard(ctx context.Context, blob ports.Blob) {
	_ = blob.Close()
	if err := c.store.Remove(ctx); err != nil && c.logger != nil {
		c.logger.WithField("location", c.store.Location()).WithError(err).Warn("ticket cache: failed to delete bad blob")
	}
	c.Clear()
}

func (c *TicketCache) Update(appTicket []byte, cookieKey []byte) error {
	if len(cookieKey) != c.keySize {
		c.Clear()
		return fmt.Errorf("%w: got %d bytes, want %d", ticket.ErrCookieKeySize, len(cookieKey), c.keySize)
	}
	if len(appTicket) == 0 {
		c.Clear()
		return ticket.ErrEmptyTicket
	}
	c.entry.AppTicket.Reset(appTicket)
	c.entry.CookieKey = make([]byte, c.keySize)
	copy(c.entry.CookieKey, cookieKey)
	return nil
}

func (c *TicketCache) Commit(ctx context.Context) error {
	if !c.entry.Valid() {
		return ticket.ErrCacheInvalid
	}
	w, err := c.store.Create(ctx)
	if err != nil {
		c.observe("commit_failed")
		return fmt.Errorf("%w: %v", ticket.ErrWriteFailed, err)
	}
	_, err = w.Write(c.entry.CookieKey)
	if err == nil {
		_, err = w.Write(c.entry.AppTicket.Bytes())
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		c.observe("commit_failed")
		return fmt.Errorf("%w: %v", ticket.ErrWriteFailed, err)
	}
	c.observe("committed")
	return nil
}

func (c *TicketCache) Apply(ctx context.Context, buf []byte, cookieKey []byte) (int, error) {
	if err := c.Reload(ctx); err != nil {
		return 0, err
	}
	n := c.entry.Size()
	if n > len(buf) && c.logger != nil {
		c.logger.WithFields(logrus.Fields{"ticket_size": n, "buffer_size": len(buf)}).Error("ticket cache: caller buffer too small, ticket truncated")
	}
	copy(buf, c.entry.AppTicket.Bytes())
	copy(cookieKey, c.entry.CookieKey)
	return n, nil
}

func (c *TicketCache) Clear() { c.entry.Clear() }

func (c *TicketCache) Invalidate(ctx context.Context) error {
	c.Clear()
	return c.store.Remove(ctx)
}

// CookieKeySize is the configured cookie key length.
func (c *TicketCache) CookieKeySize() int { return c.keySize }

func (c *TicketCache) observe(event string) {
	if c.metrics != nil {
		c.metrics.ObserveCacheEvent(event)
	}
}
