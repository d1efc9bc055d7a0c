package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type LoggingMiddleware struct {
	logger *logrus.Logger
}

func NewLoggingMiddleware(logger *logrus.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// RequestLogging emits one structured line per completed request. Failed
// requests log at Warn with the handler error; the per-request noise of
// limit checks stays at Debug.
func (m *LoggingMiddleware) RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if m.logger == nil {
				return err
			}

			fields := logrus.Fields{
				"method":      c.Request().Method,
				"path":        c.Path(),
				"status":      c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields["request_id"] = id
			}

			entry := m.logger.WithFields(fields)
			if err != nil {
				entry.WithError(err).Warn("request failed")
			} else {
				entry.Debug("request served")
			}
			return err
		}
	}
}
