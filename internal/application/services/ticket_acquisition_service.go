package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TicketAcquisitionConfig groups configuration parameters for ticket acquisition.
type TicketAcquisitionConfig struct {
	CachingEnabled bool
	// RequestTimeout demotes a request with no response to a failure. Zero disables it.
	RequestTimeout time.Duration
}

// TicketAcquisitionService decides between a freshly issued ticket and the cached one.
// Issuer responses arrive on HandleTicketResponse; callers collect the ticket with Acquire.
type TicketAcquisitionService struct {
	mu       sync.Mutex
	issuer   ports.TicketIssuer
	cache    ports.TicketCache
	session  ports.SessionKeyStore
	listener ports.TicketListener
	metrics  ports.TicketMetrics
	logger   *logrus.Logger

	cachingEnabled bool
	requestTimeout time.Duration

	lastResult ticket.IssueResult
	fresh      []byte
	pending    *ticket.IssueRequest
	timer      *time.Timer
	// persisted is set once fresh has been written to the cache, so later
	// deliveries of the same ticket never refresh the blob's age.
	persisted bool
}

// TicketAcquisitionDeps groups the collaborators of the acquisition service.
type TicketAcquisitionDeps struct {
	Issuer   ports.TicketIssuer
	Cache    ports.TicketCache
	Session  ports.SessionKeyStore
	Listener ports.TicketListener
	Metrics  ports.TicketMetrics
}

func NewTicketAcquisitionService(deps TicketAcquisitionDeps, cfg *TicketAcquisitionConfig, logger *logrus.Logger) *TicketAcquisitionService {
	s := &TicketAcquisitionService{
		issuer:   deps.Issuer,
		cache:    deps.Cache,
		session:  deps.Session,
		listener: deps.Listener,
		metrics:  deps.Metrics,
		logger:   logger,
	}
	if cfg != nil {
		s.cachingEnabled = cfg.CachingEnabled
		s.requestTimeout = cfg.RequestTimeout
	}
	return s
}

// RequestTicket asks the issuer for a new ticket. It does not wait for the response.
// Only one request should be outstanding at a time.
func (s *TicketAcquisitionService) RequestTicket(ctx context.Context) (ticket.IssueRequest, error) {
	req := ticket.IssueRequest{ID: uuid.New(), StartedAt: time.Now()}

	s.mu.Lock()
	if s.pending != nil && s.logger != nil {
		s.logger.WithField("pending_request_id", s.pending.ID).Warn("ticket request issued while another is pending")
	}
	s.pending = &req
	s.armTimeoutLocked(req.ID)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.WithField("request_id", req.ID).Debug("requesting app ticket")
	}
	if err := s.issuer.RequestTicket(ctx, req); err != nil {
		s.mu.Lock()
		if s.pending != nil && s.pending.ID == req.ID {
			s.pending = nil
			s.stopTimerLocked()
		}
		s.mu.Unlock()
		return req, fmt.Errorf("failed to request ticket: %w", err)
	}
	return req, nil
}

// HandleTicketResponse records an issuer response and reports the resulting outcome.
func (s *TicketAcquisitionService) HandleTicketResponse(resp ticket.IssueResponse, ioFailure bool) {
	if ioFailure {
		if s.logger != nil {
			s.logger.WithField("request_id", resp.RequestID).Debug("ticket response delivery failed, ignoring")
		}
		return
	}

	s.mu.Lock()
	s.lastResult = resp.Result
	s.pending = nil
	s.stopTimerLocked()

	if resp.Result != ticket.IssueOK {
		s.fresh = nil
	}

	outcome := ticket.Outcome{RequestID: resp.RequestID, Result: resp.Result, Source: ticket.SourceNone, At: time.Now()}
	fields := logrus.Fields{"request_id": resp.RequestID, "result": resp.Result}
	switch resp.Result {
	case ticket.IssueOK:
		s.fresh = append([]byte(nil), resp.Ticket...)
		s.persisted = false
		outcome.OK = true
		outcome.Source = ticket.SourceRemote
	case ticket.IssueRateLimited:
		s.logf(fields, "issuer allows one ticket request per rate window")
		if s.cachingEnabled && s.cache.IsValid() {
			s.logf(fields, "attempting to use cached app ticket")
			outcome.OK = true
			outcome.Source = ticket.SourceCache
		} else {
			outcome.Err = ticket.ErrRateLimited
		}
	case ticket.IssueDuplicateRequest:
		s.logf(fields, "ticket requested while another request was pending")
		outcome.Err = ticket.ErrDuplicateRequest
	case ticket.IssueNoConnection:
		s.logf(fields, "ticket requested while not connected to the issuer")
		outcome.Err = ticket.ErrNoConnection
	default:
		outcome.Err = fmt.Errorf("unexpected issue result %q", resp.Result)
	}
	s.mu.Unlock()

	s.notify(outcome)
}

// Acquire copies a usable ticket into buf and returns its full length. It uses the
// freshly issued ticket when the issuer last answered OK or caching is disabled,
// and the cached ticket otherwise. On the cached path the cookie key is handed to
// the session layer.
func (s *TicketAcquisitionService) Acquire(ctx context.Context, buf []byte) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastResult == ticket.IssueOK || s.lastResult == ticket.IssueUnknown || !s.cachingEnabled {
		n, ok := s.acquireFreshLocked(ctx, buf)
		s.observe(ticket.SourceRemote, ok)
		return n, ok
	}

	n, ok := s.acquireCachedLocked(ctx, buf)
	s.observe(ticket.SourceCache, ok)
	return n, ok
}

func (s *TicketAcquisitionService) acquireFreshLocked(ctx context.Context, buf []byte) (int, bool) {
	if len(s.fresh) == 0 {
		if s.logger != nil {
			s.logger.WithError(ticket.ErrNoTicket).Info("failed to retrieve app ticket")
		}
		return 0, false
	}
	copy(buf, s.fresh)

	if s.cachingEnabled && !s.persisted {
		s.persisted = true
		if err := s.cache.Update(s.fresh, s.session.CookieKey()); err != nil {
			if s.logger != nil {
				s.logger.WithError(err).Warn("couldn't cache received app ticket")
			}
		} else if err := s.cache.Commit(ctx); err != nil {
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"location": s.cache.Location(), "code": ticket.ResultCode(err)}).WithError(err).Warn("couldn't write cached app ticket")
			}
		} else if s.logger != nil {
			s.logger.WithField("location", s.cache.Location()).Debug("wrote cached app ticket")
		}
	}

	if s.logger != nil {
		s.logger.WithField("ticket_size", len(s.fresh)).Info("retrieved app ticket from issuer")
	}
	return len(s.fresh), true
}

func (s *TicketAcquisitionService) acquireCachedLocked(ctx context.Context, buf []byte) (int, bool) {
	key := make([]byte, s.session.KeySize())
	n, err := s.cache.Apply(ctx, buf, key)
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"location": s.cache.Location(), "code": ticket.ResultCode(err)}).WithError(err).Warn("failed to load cached app ticket")
		}
		s.cache.Clear()
		return 0, false
	}
	if err := s.session.SetCookieKey(key); err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("couldn't apply cached cookie key")
		}
		return 0, false
	}
	if s.logger != nil {
		s.logger.WithField("ticket_size", n).Info("retrieved cached app ticket")
	}
	return n, true
}

// SetCachingEnabled toggles the fallback cache at runtime.
func (s *TicketAcquisitionService) SetCachingEnabled(enabled bool) {
	s.mu.Lock()
	s.cachingEnabled = enabled
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.WithField("enabled", enabled).Info("ticket caching toggled")
	}
}

func (s *TicketAcquisitionService) Status() ports.TicketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.TicketStatus{
		CacheValid:     s.cache.IsValid(),
		CachingEnabled: s.cachingEnabled,
		Location:       s.cache.Location(),
		LastResult:     s.lastResult,
		Pending:        s.pending != nil,
	}
}

func (s *TicketAcquisitionService) InvalidateCache(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate ticket cache: %w", err)
	}
	return nil
}

// Close stops any pending timeout and clears the in-memory cache.
func (s *TicketAcquisitionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.pending = nil
	s.cache.Clear()
}

func (s *TicketAcquisitionService) armTimeoutLocked(id uuid.UUID) {
	s.stopTimerLocked()
	if s.requestTimeout <= 0 {
		return
	}
	s.timer = time.AfterFunc(s.requestTimeout, func() { s.expire(id) })
}

func (s *TicketAcquisitionService) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expire fails the request id if it is still the one pending.
func (s *TicketAcquisitionService) expire(id uuid.UUID) {
	s.mu.Lock()
	if s.pending == nil || s.pending.ID != id {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.timer = nil
	s.lastResult = ticket.IssueNoConnection
	s.fresh = nil
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"request_id": id, "timeout": s.requestTimeout.String()}).Warn("ticket request timed out")
	}
	s.notify(ticket.Outcome{RequestID: id, Result: ticket.IssueNoConnection, Source: ticket.SourceNone, Err: ticket.ErrRequestTimeout, At: time.Now()})
}

func (s *TicketAcquisitionService) notify(outcome ticket.Outcome) {
	if s.listener != nil {
		s.listener.OnTicketOutcome(outcome)
	}
}

func (s *TicketAcquisitionService) observe(source ticket.Source, ok bool) {
	if s.metrics != nil {
		s.metrics.ObserveAcquisition(source, ok)
	}
}

func (s *TicketAcquisitionService) logf(fields logrus.Fields, msg string) {
	if s.logger != nil {
		s.logger.WithFields(fields).Debug(msg)
	}
}
