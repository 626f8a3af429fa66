package ports

import (
	"context"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
)

// TicketCache is durable, self-healing storage of one cached ticket and cookie key.
// Implementations are not safe for concurrent use; the owner serializes access.
type TicketCache interface {
	IsValid() bool
	Reload(ctx context.Context) error
	Update(appTicket []byte, cookieKey []byte) error
	Commit(ctx context.Context) error
	// Apply reloads the cache, copies the ticket into buf and the cookie key into
	// cookieKey, and returns the full ticket length even when buf was too small.
	Apply(ctx context.Context, buf []byte, cookieKey []byte) (int, error)
	Clear()
	// Invalidate clears the cache and removes the persisted blob.
	Invalidate(ctx context.Context) error
	Location() string
}

// TicketIssuer is the remote service that issues app tickets. RequestTicket is
// fire-and-forget: exactly one response follows on the ResponseHandler, or none
// when delivery itself fails.
type TicketIssuer interface {
	RequestTicket(ctx context.Context, req ticket.IssueRequest) error
}

// ResponseHandler receives issuer responses. ioFailure reports that delivering
// the response failed, in which case resp carries no meaningful data.
type ResponseHandler interface {
	HandleTicketResponse(resp ticket.IssueResponse, ioFailure bool)
}

// SessionKeyStore is the session layer that owns the current cookie key.
type SessionKeyStore interface {
	CookieKey() []byte
	SetCookieKey(key []byte) error
	KeySize() int
}

// TicketListener is notified once per resolved ticket request.
type TicketListener interface {
	OnTicketOutcome(outcome ticket.Outcome)
}

// TicketMetrics records acquisition and cache events. Implementations must be safe for concurrent use.
type TicketMetrics interface {
	ObserveAcquisition(source ticket.Source, ok bool)
	ObserveCacheEvent(event string)
}

// TicketStatus summarizes the acquisition service state for diagnostics.
type TicketStatus struct {
	CacheValid     bool               `json:"valid"`
	CachingEnabled bool               `json:"enabled"`
	Location       string             `json:"location"`
	LastResult     ticket.IssueResult `json:"last_result"`
	Pending        bool               `json:"pending"`
}

// TicketService is the caller-facing acquisition API.
type TicketService interface {
	RequestTicket(ctx context.Context) (ticket.IssueRequest, error)
	Acquire(ctx context.Context, buf []byte) (int, bool)
	SetCachingEnabled(enabled bool)
	Status() TicketStatus
	InvalidateCache(ctx context.Context) error
}
