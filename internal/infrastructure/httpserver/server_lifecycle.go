package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Start serves the metering API until Shutdown or a listener error. The
// webhook endpoint is usually fronted by a TLS-terminating proxy, so plain
// HTTP is allowed but logged loudly.
func (s *Server) Start() error {
	s.LogMetricsInitialization()

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)

	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		s.logger.WithField("addr", addr).Info("metering API listening with TLS")
		return s.echo.StartTLS(addr, s.config.TLSCertFile, s.config.TLSKeyFile)
	}

	server := &http.Server{
		Addr:         addr,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.logger.WithField("addr", addr).Info("metering API listening")
	s.logger.Warn("TLS certificates not configured, serving plain HTTP")
	return s.echo.StartServer(server)
}

// Shutdown drains in-flight requests. Webhook deliveries cut off mid-flight
// are safe to drop: the provider redelivers anything left unacknowledged.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
