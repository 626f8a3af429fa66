package httpserver_test

import (
	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/health"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/issuer"
)

func healthFor(iss *issuer.LocalIssuer) ports.HealthChecker {
	return health.NewIssuerHealthChecker(iss)
}
