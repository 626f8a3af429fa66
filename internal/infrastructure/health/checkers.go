package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/go-redis/redis/v8"
)

var errIssuerDisconnected = errors.New("issuer not connected")

// cacheDirHealthChecker checks that the cache file's directory is usable.
type cacheDirHealthChecker struct{ path string }

func (d *cacheDirHealthChecker) Name() string { return "ticket_cache" }
func (d *cacheDirHealthChecker) Check(ctx context.Context) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// redisHealthChecker wraps the redis client for health checks.
type redisHealthChecker struct{ client *redis.Client }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

type connectivity interface{ Connected() bool }

// issuerHealthChecker reports whether the ticket issuer is reachable.
type issuerHealthChecker struct{ issuer connectivity }

func (i *issuerHealthChecker) Name() string { return "issuer" }
func (i *issuerHealthChecker) Check(ctx context.Context) error {
	if !i.issuer.Connected() {
		return errIssuerDisconnected
	}
	return nil
}

// NewCacheDirHealthChecker creates a health checker for the cache file location.
func NewCacheDirHealthChecker(path string) ports.HealthChecker {
	return &cacheDirHealthChecker{path: path}
}

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client *redis.Client) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// NewIssuerHealthChecker creates a health checker for the ticket issuer.
func NewIssuerHealthChecker(issuer connectivity) ports.HealthChecker {
	return &issuerHealthChecker{issuer: issuer}
}
