package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/captionly/metering/configs"
	"github.com/captionly/metering/internal/application/services"
	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/ports"
	"github.com/captionly/metering/internal/infrastructure/db"
	"github.com/captionly/metering/internal/infrastructure/health"
	"github.com/captionly/metering/internal/infrastructure/httpserver"
	"github.com/captionly/metering/internal/infrastructure/redis"
	"github.com/captionly/metering/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting metering service...")

	// Initialize database (apply pool settings from config)
	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	logger.Info("Connected to database successfully")

	// Initialize Redis client
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	logger.Info("Connected to Redis successfully")

	// Run migrations
	if err := database.Migrate("./migrations"); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// Initialize generic Redis cache for read-heavy account snapshots
	redisCache := redis.NewRedisCache(redisClient, "metering")

	// Initialize repository implementations
	baseAccountRepo := repositories.NewAccountRepository(database, logger)
	accountRepo := repositories.NewCachingAccountRepository(baseAccountRepo, redisCache, cfg.RateLimit.AccountCacheTTL)
	paymentRepo := repositories.NewPaymentRepository(database, logger)
	eventAuditRepo := repositories.NewEventAuditRepository(database, logger)
	eventGuard := repositories.NewEventGuardRedisRepository(redisClient, "")

	catalog := account.DefaultCatalog()

	// Wire services with their repository dependencies
	rateLimiterConfig := &services.RateLimiterConfig{
		LockTimeout: cfg.RateLimit.LockTimeout,
	}
	rateLimiterService := services.NewRateLimiterService(accountRepo, catalog, rateLimiterConfig, logger)
	usageService := services.NewUsageService(accountRepo, catalog, logger)
	subscriptionService := services.NewSubscriptionService(accountRepo, logger)
	paymentLedger := services.NewPaymentLedgerService(paymentRepo, logger)
	auditTrail := services.NewAuditTrailService(eventAuditRepo, logger)

	ingestorConfig := &services.EventIngestorConfig{
		Secret:   cfg.Webhook.Secret,
		GuardTTL: cfg.Webhook.GuardTTL,
	}
	ingestor := services.NewEventIngestorService(eventAuditRepo, eventGuard, subscriptionService, paymentLedger, ingestorConfig, logger)

	hcSlice := []ports.HealthChecker{health.NewDBHealthChecker(database), health.NewRedisHealthChecker(redisClient)}

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	deps := httpserver.ServerDeps{
		RateLimiterService: rateLimiterService,
		UsageService:       usageService,
		PaymentLedger:      paymentLedger,
		EventIngestor:      ingestor,
		AuditTrailService:  auditTrail,
		HealthCheckers:     hcSlice,
	}

	server := httpserver.NewServer(serverConfig, cfg.Auth.ServiceTokenSecret, logger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
