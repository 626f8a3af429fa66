package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"github.com/avatarctic/ticket-cache/internal/application/services"
	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type acquireTicketResponse struct {
	RequestID    uuid.UUID     `json:"request_id"`
	Ticket       string        `json:"ticket"`
	TicketLength int           `json:"ticket_length"`
	CookieKey    string        `json:"cookie_key"`
	Source       ticket.Source `json:"source"`
}

type setCachingEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// acquireTicket requests a ticket, waits for the issuer to answer and returns
// whichever ticket the service hands out.
func (s *Server) acquireTicket(c echo.Context) error {
	ctx := c.Request().Context()
	if s.config != nil && s.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.AcquireTimeout)
		defer cancel()
	}

	ch, unsubscribe := s.outcomes.Subscribe()
	defer unsubscribe()

	req, err := s.ticketSvc.RequestTicket(ctx)
	if err != nil {
		s.logError("ticket request failed", err)
		return echo.NewHTTPError(http.StatusBadGateway, "ticket request failed")
	}

	outcome, err := services.WaitFor(ctx, ch, req.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "timed out waiting for ticket issuer")
	}
	if !outcome.OK {
		msg := "ticket unavailable"
		if outcome.Err != nil {
			msg = outcome.Err.Error()
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, msg)
	}

	buf := make([]byte, maxTicketSize)
	n, ok := s.ticketSvc.Acquire(ctx, buf)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to retrieve ticket")
	}
	if n > len(buf) {
		return echo.NewHTTPError(http.StatusInternalServerError, "ticket larger than acquisition buffer")
	}

	return c.JSON(http.StatusOK, acquireTicketResponse{
		RequestID:    req.ID,
		Ticket:       base64.StdEncoding.EncodeToString(buf[:n]),
		TicketLength: n,
		CookieKey:    hex.EncodeToString(s.session.CookieKey()),
		Source:       outcome.Source,
	})
}

func (s *Server) getCacheStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ticketSvc.Status())
}

func (s *Server) invalidateCache(c echo.Context) error {
	if err := s.ticketSvc.InvalidateCache(c.Request().Context()); err != nil {
		s.logError("failed to invalidate ticket cache", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to invalidate ticket cache")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) setCachingEnabled(c echo.Context) error {
	var req setCachingEnabledRequest
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected {\"enabled\": bool}")
	}
	s.ticketSvc.SetCachingEnabled(*req.Enabled)
	return c.JSON(http.StatusOK, s.ticketSvc.Status())
}

func (s *Server) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"component": "tickets"}).WithError(err).Warn(msg)
	}
}
