package issuer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var ErrNoHandler = errors.New("issuer has no response handler")

// LocalIssuerConfig groups configuration parameters for the local issuer.
type LocalIssuerConfig struct {
	AppID      string
	Secret     []byte
	RateWindow time.Duration
	TicketTTL  time.Duration
	// Latency delays every response, to mimic a remote round trip.
	Latency time.Duration
}

// LocalIssuer is an in-process ticket issuer with the same contract as the
// remote one: one ticket per rate window, one pending request at a time, and
// an asynchronous response per request. Tickets are HS256-signed JWTs.
type LocalIssuer struct {
	mu        sync.Mutex
	cfg       LocalIssuerConfig
	limiter   *rate.Limiter
	handler   ports.ResponseHandler
	pending   bool
	connected bool
	wg        sync.WaitGroup
	logger    *logrus.Logger
}

func NewLocalIssuer(cfg LocalIssuerConfig, logger *logrus.Logger) *LocalIssuer {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.TicketTTL <= 0 {
		cfg.TicketTTL = 5 * time.Minute
	}
	return &LocalIssuer{
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(cfg.RateWindow), 1),
		connected: true,
		logger:    logger,
	}
}

// SetHandler sets where responses are delivered.
func (i *LocalIssuer) SetHandler(h ports.ResponseHandler) {
	i.mu.Lock()
	i.handler = h
	i.mu.Unlock()
}

// SetConnected simulates losing or regaining the issuer connection.
func (i *LocalIssuer) SetConnected(connected bool) {
	i.mu.Lock()
	i.connected = connected
	i.mu.Unlock()
}

func (i *LocalIssuer) Connected() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.connected
}

// RequestTicket implements TicketIssuer.RequestTicket.
func (i *LocalIssuer) RequestTicket(ctx context.Context, req ticket.IssueRequest) error {
	i.mu.Lock()
	h := i.handler
	if h == nil {
		i.mu.Unlock()
		return ErrNoHandler
	}
	resp := ticket.IssueResponse{RequestID: req.ID}
	switch {
	case !i.connected:
		resp.Result = ticket.IssueNoConnection
	case i.pending:
		resp.Result = ticket.IssueDuplicateRequest
	case !i.limiter.Allow():
		resp.Result = ticket.IssueRateLimited
	default:
		resp.Result = ticket.IssueOK
	}
	// Every request but a duplicate holds the slot until its response is delivered.
	if resp.Result != ticket.IssueDuplicateRequest {
		i.pending = true
	}
	i.mu.Unlock()

	i.wg.Add(1)
	go i.respond(h, req, resp)
	return nil
}

func (i *LocalIssuer) respond(h ports.ResponseHandler, req ticket.IssueRequest, resp ticket.IssueResponse) {
	defer i.wg.Done()
	if i.cfg.Latency > 0 {
		time.Sleep(i.cfg.Latency)
	}

	ioFailure := false
	if resp.Result == ticket.IssueOK {
		tok, err := i.mint(req)
		if err != nil {
			if i.logger != nil {
				i.logger.WithField("request_id", req.ID).WithError(err).Error("issuer: failed to sign ticket")
			}
			ioFailure = true
		} else {
			resp.Ticket = []byte(tok)
		}
	}

	if resp.Result != ticket.IssueDuplicateRequest {
		i.mu.Lock()
		i.pending = false
		i.mu.Unlock()
	}
	h.HandleTicketResponse(resp, ioFailure)
}

func (i *LocalIssuer) mint(req ticket.IssueRequest) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    i.cfg.AppID,
		Subject:   i.cfg.AppID,
		ID:        req.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TicketTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
}

// ParseTicket verifies a ticket minted by this issuer and returns its claims.
func (i *LocalIssuer) ParseTicket(raw []byte) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(string(raw), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.cfg.Secret, nil
	}, jwt.WithIssuer(i.cfg.AppID))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Close waits for in-flight responses to be delivered.
func (i *LocalIssuer) Close() {
	i.wg.Wait()
}
