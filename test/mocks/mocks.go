package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/avatarctic/ticket-cache/internal/core/ports"
)

// TicketIssuerMock is a lightweight mock for TicketIssuer
type TicketIssuerMock struct {
	RequestTicketFn func(ctx context.Context, req ticket.IssueRequest) error

	mu       sync.Mutex
	Requests []ticket.IssueRequest
}

func (m *TicketIssuerMock) RequestTicket(ctx context.Context, req ticket.IssueRequest) error {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.RequestTicketFn != nil {
		return m.RequestTicketFn(ctx, req)
	}
	return nil
}

// LastRequest returns the most recent request, or the zero request if none was made.
func (m *TicketIssuerMock) LastRequest() ticket.IssueRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return ticket.IssueRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// SessionKeyStoreMock is an in-memory SessionKeyStore
type SessionKeyStoreMock struct {
	Key          []byte
	Size         int
	SetCookieErr error
}

func (m *SessionKeyStoreMock) CookieKey() []byte { return append([]byte(nil), m.Key...) }
func (m *SessionKeyStoreMock) SetCookieKey(key []byte) error {
	if m.SetCookieErr != nil {
		return m.SetCookieErr
	}
	m.Key = append([]byte(nil), key...)
	return nil
}
func (m *SessionKeyStoreMock) KeySize() int {
	if m.Size > 0 {
		return m.Size
	}
	return len(m.Key)
}

// TicketListenerMock records every outcome it is given
type TicketListenerMock struct {
	mu       sync.Mutex
	Outcomes []ticket.Outcome
}

func (m *TicketListenerMock) OnTicketOutcome(outcome ticket.Outcome) {
	m.mu.Lock()
	m.Outcomes = append(m.Outcomes, outcome)
	m.mu.Unlock()
}

// Last returns the most recent outcome and whether there was one.
func (m *TicketListenerMock) Last() (ticket.Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Outcomes) == 0 {
		return ticket.Outcome{}, false
	}
	return m.Outcomes[len(m.Outcomes)-1], true
}

func (m *TicketListenerMock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Outcomes)
}

// TicketMetricsMock counts observations by label
type TicketMetricsMock struct {
	mu           sync.Mutex
	Acquisitions map[string]int
	CacheEvents  map[string]int
}

func (m *TicketMetricsMock) ObserveAcquisition(source ticket.Source, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Acquisitions == nil {
		m.Acquisitions = make(map[string]int)
	}
	m.Acquisitions[fmt.Sprintf("%s:%t", source, ok)]++
}

func (m *TicketMetricsMock) ObserveCacheEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CacheEvents == nil {
		m.CacheEvents = make(map[string]int)
	}
	m.CacheEvents[event]++
}

// BlobStoreMock wraps a BlobStore and lets tests fail individual calls
type BlobStoreMock struct {
	ports.BlobStore
	CreateErr error
	RemoveErr error
}

func (m *BlobStoreMock) Create(ctx context.Context) (io.WriteCloser, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return m.BlobStore.Create(ctx)
}

func (m *BlobStoreMock) Remove(ctx context.Context) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	return m.BlobStore.Remove(ctx)
}

// TicketServiceMock is a lightweight mock for TicketService
type TicketServiceMock struct {
	RequestTicketFn     func(ctx context.Context) (ticket.IssueRequest, error)
	AcquireFn           func(ctx context.Context, buf []byte) (int, bool)
	SetCachingEnabledFn func(enabled bool)
	StatusFn            func() ports.TicketStatus
	InvalidateCacheFn   func(ctx context.Context) error
}

func (m *TicketServiceMock) RequestTicket(ctx context.Context) (ticket.IssueRequest, error) {
	if m.RequestTicketFn != nil {
		return m.RequestTicketFn(ctx)
	}
	return ticket.IssueRequest{}, nil
}
func (m *TicketServiceMock) Acquire(ctx context.Context, buf []byte) (int, bool) {
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx, buf)
	}
	return 0, false
}
func (m *TicketServiceMock) SetCachingEnabled(enabled bool) {
	if m.SetCachingEnabledFn != nil {
		m.SetCachingEnabledFn(enabled)
	}
}
func (m *TicketServiceMock) Status() ports.TicketStatus {
	if m.StatusFn != nil {
		return m.StatusFn()
	}
	return ports.TicketStatus{}
}
func (m *TicketServiceMock) InvalidateCache(ctx context.Context) error {
	if m.InvalidateCacheFn != nil {
		return m.InvalidateCacheFn(ctx)
	}
	return nil
}
