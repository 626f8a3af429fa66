package ticket

import (
	"time"

	"github.com/google/uuid"
)

// CachedTicket is the in-memory form of one persisted app ticket and its cookie key.
// On disk it is stored as cookieKey followed by appTicket, with no header.
type CachedTicket struct {
	AppTicket Buffer
	CookieKey []byte
}

// Size is the app ticket length. Zero means no ticket is present.
func (c *CachedTicket) Size() int { return c.AppTicket.Len() }

// Valid reports whether both buffers are allocated and a ticket is present.
func (c *CachedTicket) Valid() bool {
	return c.AppTicket.Allocated() && c.CookieKey != nil && c.Size() > 0
}

// Clear releases both buffers.
func (c *CachedTicket) Clear() {
	c.AppTicket.Release()
	c.CookieKey = nil
}

// IssueResult is the result code reported by the remote issuing service.
type IssueResult string

const (
	IssueUnknown          IssueResult = ""
	IssueOK               IssueResult = "ok"
	IssueRateLimited      IssueResult = "rate_limited"
	IssueDuplicateRequest IssueResult = "duplicate_request"
	IssueNoConnection     IssueResult = "no_connection"
)

// Err returns the acquisition error matching a non-OK result.
func (r IssueResult) Err() error {
	switch r {
	case IssueRateLimited:
		return ErrRateLimited
	case IssueDuplicateRequest:
		return ErrDuplicateRequest
	case IssueNoConnection:
		return ErrNoConnection
	default:
		return nil
	}
}

// IssueRequest identifies one outstanding ticket request.
type IssueRequest struct {
	ID        uuid.UUID `json:"request_id"`
	StartedAt time.Time `json:"started_at"`
}

// IssueResponse is the asynchronous answer to one ticket request.
type IssueResponse struct {
	RequestID uuid.UUID
	Result    IssueResult
	// Ticket holds the issued bytes when Result is IssueOK.
	Ticket []byte
}

// Source says where a delivered ticket came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
)

// Outcome is what the acquisition service reports to its listener after a
// response (or a timeout) resolves a pending request.
type Outcome struct {
	RequestID uuid.UUID   `json:"request_id"`
	OK        bool        `json:"ok"`
	Source    Source      `json:"source"`
	Result    IssueResult `json:"result"`
	Err       error       `json:"-"`
	At        time.Time   `json:"at"`
}
