package httpserver

import (
	"time"

	"github.com/avatarctic/ticket-cache/internal/application/services"
	"github.com/avatarctic/ticket-cache/internal/core/ports"
	customMiddleware "github.com/avatarctic/ticket-cache/internal/infrastructure/httpserver/middleware"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// maxTicketSize bounds the buffer handed to TicketService.Acquire.
const maxTicketSize = 4096

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	// AcquireTimeout bounds how long POST /tickets waits for the issuer.
	AcquireTimeout time.Duration
}

type ServerDeps struct {
	TicketService  ports.TicketService
	Session        ports.SessionKeyStore
	Outcomes       *services.OutcomeWaiter
	HealthCheckers []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	ticketSvc      ports.TicketService
	session        ports.SessionKeyStore
	outcomes       *services.OutcomeWaiter
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		ticketSvc:      deps.TicketService,
		session:        deps.Session,
		outcomes:       deps.Outcomes,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			logger,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
