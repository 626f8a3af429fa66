package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/avatarctic/ticket-cache/configs"
	"github.com/avatarctic/ticket-cache/internal/application/services"
	"github.com/avatarctic/ticket-cache/internal/core/ports"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/filestore"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/health"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/httpserver"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/issuer"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/metrics"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/redis"
	"github.com/avatarctic/ticket-cache/internal/infrastructure/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting ticket cache agent...")

	ticketMetrics := metrics.NewTicketMetrics(prometheus.DefaultRegisterer)
	hcSlice := []ports.HealthChecker{}

	// Pick the blob store backing the ticket cache
	var store ports.BlobStore
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis successfully")
		store = redis.NewBlobStore(redisClient, cfg.Cache.RedisKey, 2*cfg.Cache.StaleAfter)
		hcSlice = append(hcSlice, health.NewRedisHealthChecker(redisClient))
	default:
		store = filestore.NewBlobStore(cfg.Cache.FilePath)
		hcSlice = append(hcSlice, health.NewCacheDirHealthChecker(cfg.Cache.FilePath))
	}

	keyStore, err := session.NewKeyStore(cfg.Session.Secret, cfg.Cache.CookieKeySize)
	if err != nil {
		logger.Fatal("Failed to initialize session key store:", err)
	}
	logger.WithField("session_id", keyStore.SessionID()).Info("Session initialized")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Second)
	ticketCache := services.OpenTicketCache(startCtx, store, &services.TicketCacheConfig{
		CookieKeySize: cfg.Cache.CookieKeySize,
		StaleAfter:    cfg.Cache.StaleAfter,
	}, ticketMetrics, logger)
	cancelStart()

	localIssuer := issuer.NewLocalIssuer(issuer.LocalIssuerConfig{
		AppID:      cfg.Issuer.AppID,
		Secret:     []byte(cfg.Issuer.Secret),
		RateWindow: cfg.Issuer.RateWindow,
		TicketTTL:  cfg.Issuer.TicketTTL,
	}, logger)
	hcSlice = append(hcSlice, health.NewIssuerHealthChecker(localIssuer))

	outcomes := services.NewOutcomeWaiter()
	ticketService := services.NewTicketAcquisitionService(services.TicketAcquisitionDeps{
		Issuer:   localIssuer,
		Cache:    ticketCache,
		Session:  keyStore,
		Listener: outcomes,
		Metrics:  ticketMetrics,
	}, &services.TicketAcquisitionConfig{
		CachingEnabled: cfg.Cache.Enabled,
		RequestTimeout: cfg.Issuer.RequestTimeout,
	}, logger)
	localIssuer.SetHandler(ticketService)

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AcquireTimeout: cfg.Issuer.RequestTimeout + 5*time.Second,
	}

	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		TicketService:  ticketService,
		Session:        keyStore,
		Outcomes:       outcomes,
		HealthCheckers: hcSlice,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"cache_backend":  cfg.Cache.Backend,
		"cache_location": store.Location(),
		"cache_enabled":  cfg.Cache.Enabled,
	}).Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}
	localIssuer.Close()
	ticketService.Close()

	logger.Info("Server exited")
}
