package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/ports"
	customMiddleware "github.com/captionly/metering/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type ServerDeps struct {
	RateLimiterService ports.RateLimiterService
	UsageService       ports.UsageService
	PaymentLedger      ports.PaymentLedgerService
	EventIngestor      ports.EventIngestorService
	AuditTrailService  ports.AuditTrailService
	HealthCheckers     []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	rateLimiter    ports.RateLimiterService
	usageSvc       ports.UsageService
	paymentLedger  ports.PaymentLedgerService
	ingestor       ports.EventIngestorService
	auditTrail     ports.AuditTrailService
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, serviceTokenSecret string, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		rateLimiter:    deps.RateLimiterService,
		usageSvc:       deps.UsageService,
		paymentLedger:  deps.PaymentLedger,
		ingestor:       deps.EventIngestor,
		auditTrail:     deps.AuditTrailService,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			serviceTokenSecret,
			logger,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
