package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avatarctic/ticket-cache/internal/application/services"
	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/filestore"
	tmocks "github.com/avatarctic/ticket-cache/test/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type acquisitionFixture struct {
	svc      *services.TicketAcquisitionService
	cache    *services.TicketCache
	store    ports.BlobStore
	path     string
	issuer   *tmocks.TicketIssuerMock
	session  *tmocks.SessionKeyStoreMock
	listener *tmocks.TicketListenerMock
	metrics  *tmocks.TicketMetricsMock
}

func newAcquisitionFixture(t *testing.T, cfg *services.TicketAcquisitionConfig) *acquisitionFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "players", "auth.bin")
	return newAcquisitionFixtureAt(t, filestore.NewBlobStore(path), path, cfg)
}

func newAcquisitionFixtureAt(t *testing.T, store ports.BlobStore, path string, cfg *services.TicketAcquisitionConfig) *acquisitionFixture {
	t.Helper()
	f := &acquisitionFixture{
		store:    store,
		path:     path,
		issuer:   &tmocks.TicketIssuerMock{},
		session:  &tmocks.SessionKeyStoreMock{Key: []byte("sessKey!")},
		listener: &tmocks.TicketListenerMock{},
		metrics:  &tmocks.TicketMetricsMock{},
	}
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	f.cache = services.OpenTicketCache(context.Background(), store, &services.TicketCacheConfig{CookieKeySize: 8}, f.metrics, logger)
	f.svc = services.NewTicketAcquisitionService(services.TicketAcquisitionDeps{
		Issuer:   f.issuer,
		Cache:    f.cache,
		Session:  f.session,
		Listener: f.listener,
		Metrics:  f.metrics,
	}, cfg, logger)
	return f
}

// respond issues a request and answers it with result.
func (f *acquisitionFixture) respond(t *testing.T, result ticket.IssueResult, tkt []byte) ticket.Outcome {
	t.Helper()
	req, err := f.svc.RequestTicket(context.Background())
	require.NoError(t, err)
	f.svc.HandleTicketResponse(ticket.IssueResponse{RequestID: req.ID, Result: result, Ticket: tkt}, false)
	out, ok := f.listener.Last()
	require.True(t, ok)
	require.Equal(t, req.ID, out.RequestID)
	return out
}

func seedCache(t *testing.T, store ports.BlobStore, tkt, key []byte) {
	t.Helper()
	c := services.NewTicketCache(store, &services.TicketCacheConfig{CookieKeySize: len(key)}, nil, nil)
	require.NoError(t, c.Update(tkt, key))
	require.NoError(t, c.Commit(context.Background()))
}

func TestAcquire_FreshTicketIsDeliveredAndCached(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true})
	out := f.respond(t, ticket.IssueOK, []byte("fresh-ticket"))
	require.True(t, out.OK)
	require.Equal(t, ticket.SourceRemote, out.Source)

	buf := make([]byte, 64)
	n, ok := f.svc.Acquire(context.Background(), buf)
	require.True(t, ok)
	require.Equal(t, "fresh-ticket", string(buf[:n]))

	data, err := os.ReadFile(f.path)
	require.NoError(t, err)
	require.Equal(t, append([]byte("sessKey!"), []byte("fresh-ticket")...), data)
	require.Equal(t, 1, f.metrics.Acquisitions["remote:true"])
}

func TestAcquire_CachingDisabledSkipsPersistence(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: false})
	f.respond(t, ticket.IssueOK, []byte("fresh-ticket"))

	n, ok := f.svc.Acquire(context.Background(), make([]byte, 64))
	require.True(t, ok)
	require.Equal(t, 12, n)
	_, err := os.Stat(f.path)
	require.True(t, os.IsNotExist(err))
}

func TestAcquire_FirstRequestUsesIssuerPath(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true})
	seedCache(t, f.store, testTicket, testKey)

	// No response has arrived yet, so there is nothing fresh to hand out and the
	// cache must not be consulted.
	n, ok := f.svc.Acquire(context.Background(), make([]byte, 64))
	require.False(t, ok)
	require.Zero(t, n)
	require.Equal(t, []byte("sessKey!"), f.session.Key)
}

func TestAcquire_RateLimitedFallsBackToCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.bin")
	store := filestore.NewBlobStore(path)
	seedCache(t, store, []byte{0xAA, 0xBB, 0xCC}, testKey)

	f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: true})
	require.True(t, f.cache.IsValid(), "cache loads on construction")

	out := f.respond(t, ticket.IssueRateLimited, nil)
	require.True(t, out.OK)
	require.Equal(t, ticket.SourceCache, out.Source)
	require.Equal(t, ticket.IssueRateLimited, out.Result, "the remote result is reported as is")

	buf := make([]byte, 64)
	n, ok := f.svc.Acquire(context.Background(), buf)
	require.True(t, ok)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, buf[:n])
	require.Equal(t, testKey, f.session.Key)
	require.Equal(t, 1, f.metrics.Acquisitions["cache:true"])
}

func TestAcquire_RateLimitedWithoutCacheFails(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true})
	out := f.respond(t, ticket.IssueRateLimited, nil)
	require.False(t, out.OK)
	require.ErrorIs(t, out.Err, ticket.ErrRateLimited)

	_, ok := f.svc.Acquire(context.Background(), make([]byte, 64))
	require.False(t, ok)
	require.Equal(t, 1, f.metrics.Acquisitions["cache:false"])
}

func TestAcquire_RateLimitedWithCachingDisabledFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.bin")
	store := filestore.NewBlobStore(path)
	seedCache(t, store, testTicket, testKey)

	f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: false})
	out := f.respond(t, ticket.IssueRateLimited, nil)
	require.False(t, out.OK)
	require.ErrorIs(t, out.Err, ticket.ErrRateLimited)
}

func TestAcquire_FailedResponseDropsEarlierFreshTicket(t *testing.T) {
	for _, result := range []ticket.IssueResult{ticket.IssueRateLimited, ticket.IssueNoConnection, ticket.IssueDuplicateRequest} {
		t.Run(string(result), func(t *testing.T) {
			f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: false})
			f.respond(t, ticket.IssueOK, []byte("old-ticket"))
			require.False(t, f.respond(t, result, nil).OK)

			buf := make([]byte, 64)
			n, ok := f.svc.Acquire(context.Background(), buf)
			require.False(t, ok)
			require.Zero(t, n)
			require.Equal(t, 1, f.metrics.Acquisitions["remote:false"])
		})
	}
}

func TestAcquire_TimeoutDropsEarlierFreshTicket(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: false, RequestTimeout: 20 * time.Millisecond})
	f.respond(t, ticket.IssueOK, []byte("old-ticket"))

	_, err := f.svc.RequestTicket(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.listener.Count() == 2 }, time.Second, 5*time.Millisecond)

	_, ok := f.svc.Acquire(context.Background(), make([]byte, 64))
	require.False(t, ok)
}

func TestAcquire_RepeatedDeliveryKeepsBlobAge(t *testing.T) {
	ctx := context.Background()
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true})
	f.respond(t, ticket.IssueOK, []byte("old-ticket"))

	buf := make([]byte, 64)
	_, ok := f.svc.Acquire(ctx, buf)
	require.True(t, ok)

	old := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(f.path, old, old))

	// The same ticket is still handed out, but it is not written again.
	n, ok := f.svc.Acquire(ctx, buf)
	require.True(t, ok)
	require.Equal(t, "old-ticket", string(buf[:n]))
	info, err := os.Stat(f.path)
	require.NoError(t, err)
	require.WithinDuration(t, old, info.ModTime(), time.Second)
	require.Equal(t, 1, f.metrics.CacheEvents["committed"])

	f.respond(t, ticket.IssueRateLimited, nil)
	n, ok = f.svc.Acquire(ctx, buf)
	require.False(t, ok, "a ticket older than the stale bound must not be served")
	require.Zero(t, n)
	_, err = os.Stat(f.path)
	require.True(t, os.IsNotExist(err))
}

func TestHandleResponse_RemoteFailuresLeaveCacheAlone(t *testing.T) {
	for _, tc := range []struct {
		result ticket.IssueResult
		err    error
	}{
		{ticket.IssueDuplicateRequest, ticket.ErrDuplicateRequest},
		{ticket.IssueNoConnection, ticket.ErrNoConnection},
	} {
		t.Run(string(tc.result), func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "auth.bin")
			store := filestore.NewBlobStore(path)
			seedCache(t, store, testTicket, testKey)
			before, err := os.ReadFile(path)
			require.NoError(t, err)

			f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: true})
			out := f.respond(t, tc.result, nil)
			require.False(t, out.OK)
			require.ErrorIs(t, out.Err, tc.err)
			require.True(t, f.cache.IsValid())

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, before, after)
			require.Equal(t, tc.result, f.svc.Status().LastResult)
		})
	}
}

func TestHandleResponse_IOFailureIsIgnored(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true})
	f.respond(t, ticket.IssueOK, []byte("t1"))

	req, err := f.svc.RequestTicket(context.Background())
	require.NoError(t, err)
	f.svc.HandleTicketResponse(ticket.IssueResponse{RequestID: req.ID, Result: ticket.IssueRateLimited}, true)

	require.Equal(t, 1, f.listener.Count())
	st := f.svc.Status()
	require.Equal(t, ticket.IssueOK, st.LastResult)
	require.True(t, st.Pending)
}

func TestAcquire_FallbackFailureClearsCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.bin")
	store := filestore.NewBlobStore(path)
	seedCache(t, store, testTicket, testKey)

	f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: true})
	out := f.respond(t, ticket.IssueRateLimited, nil)
	require.True(t, out.OK)

	// The blob disappears between the response and the retrieval.
	require.NoError(t, os.Remove(path))
	_, ok := f.svc.Acquire(context.Background(), make([]byte, 64))
	require.False(t, ok)
	require.False(t, f.cache.IsValid())
	require.Equal(t, []byte("sessKey!"), f.session.Key)
}

func TestAcquire_FallbackRejectsStaleCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.bin")
	store := filestore.NewBlobStore(path)
	seedCache(t, store, testTicket, testKey)

	f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: true})
	f.respond(t, ticket.IssueRateLimited, nil)

	old := time.Now().Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))
	_, ok := f.svc.Acquire(context.Background(), make([]byte, 64))
	require.False(t, ok)
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestAcquire_CommitFailureIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.bin")
	store := &tmocks.BlobStoreMock{BlobStore: filestore.NewBlobStore(path), CreateErr: errors.New("read-only filesystem")}
	f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: true})
	f.respond(t, ticket.IssueOK, []byte("fresh"))

	n, ok := f.svc.Acquire(context.Background(), make([]byte, 64))
	require.True(t, ok)
	require.Equal(t, 5, n)
	require.True(t, f.cache.IsValid(), "the unpersisted ticket stays in memory")
}

func TestRequestTicket_IssuerErrorClearsPending(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true, RequestTimeout: time.Hour})
	f.issuer.RequestTicketFn = func(ctx context.Context, req ticket.IssueRequest) error {
		return errors.New("issuer offline")
	}
	_, err := f.svc.RequestTicket(context.Background())
	require.Error(t, err)
	require.False(t, f.svc.Status().Pending)
}

func TestRequestTicket_TimeoutDemotesToFailure(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true, RequestTimeout: 20 * time.Millisecond})
	req, err := f.svc.RequestTicket(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.listener.Count() == 1 }, time.Second, 5*time.Millisecond)
	out, _ := f.listener.Last()
	require.Equal(t, req.ID, out.RequestID)
	require.False(t, out.OK)
	require.ErrorIs(t, out.Err, ticket.ErrRequestTimeout)

	st := f.svc.Status()
	require.False(t, st.Pending)
	require.Equal(t, ticket.IssueNoConnection, st.LastResult)
}

func TestRequestTicket_ResponseCancelsTimeout(t *testing.T) {
	f := newAcquisitionFixture(t, &services.TicketAcquisitionConfig{CachingEnabled: true, RequestTimeout: 30 * time.Millisecond})
	f.respond(t, ticket.IssueOK, []byte("t"))

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 1, f.listener.Count())
	require.Equal(t, ticket.IssueOK, f.svc.Status().LastResult)
}

func TestSetCachingEnabled_TogglesFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.bin")
	store := filestore.NewBlobStore(path)
	seedCache(t, store, testTicket, testKey)

	f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: false})
	require.False(t, f.respond(t, ticket.IssueRateLimited, nil).OK)

	f.svc.SetCachingEnabled(true)
	require.True(t, f.svc.Status().CachingEnabled)
	require.True(t, f.respond(t, ticket.IssueRateLimited, nil).OK)
}

func TestClose_ClearsCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.bin")
	store := filestore.NewBlobStore(path)
	seedCache(t, store, testTicket, testKey)

	f := newAcquisitionFixtureAt(t, store, path, &services.TicketAcquisitionConfig{CachingEnabled: true})
	require.True(t, f.cache.IsValid())
	f.svc.Close()
	require.False(t, f.cache.IsValid())
	_, err := os.Stat(path)
	require.NoError(t, err, "teardown keeps the persisted blob")
}
