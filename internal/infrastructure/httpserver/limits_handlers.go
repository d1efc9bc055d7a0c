package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/ports"
)

type checkRateLimitRequest struct {
	CustomerID string `json:"customer_id"`
}

func (s *Server) checkRateLimit(c echo.Context) error {
	var req checkRateLimitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CustomerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id is required")
	}

	decision, err := s.rateLimiter.CheckRateLimit(c.Request().Context(), req.CustomerID)
	if err != nil {
		if te, ok := account.IsThrottled(err); ok {
			rateLimitDecisionsTotal.WithLabelValues("throttled").Inc()
			c.Response().Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(te), 10))
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"allowed":        false,
				"tier":           te.Tier,
				"retry_after_ms": te.RetryAfter.Milliseconds(),
			})
		}
		if errors.Is(err, ports.ErrStoreUnavailable) {
			rateLimitDecisionsTotal.WithLabelValues("unavailable").Inc()
			return echo.NewHTTPError(http.StatusServiceUnavailable, "account store unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	rateLimitDecisionsTotal.WithLabelValues("allowed").Inc()
	return c.JSON(http.StatusOK, decision)
}

// retryAfterSeconds rounds the remaining wait up to whole seconds, the
// granularity of the Retry-After header.
func retryAfterSeconds(te *account.ThrottledError) int64 {
	secs := int64(te.RetryAfter.Seconds())
	if te.RetryAfter > 0 && secs == 0 {
		secs = 1
	}
	return secs
}

func (s *Server) recordUsage(c echo.Context) error {
	var req account.RecordUsageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CustomerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id is required")
	}
	if req.Requests < 0 || req.Tokens < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "usage increments must not be negative")
	}

	counters, err := s.usageSvc.RecordUsage(c.Request().Context(), &req)
	if err != nil {
		if _, ok := account.IsQuotaExceeded(err); ok {
			return echo.NewHTTPError(http.StatusPaymentRequired, "Usage limit reached. Please upgrade to continue.")
		}
		if errors.Is(err, ports.ErrStoreUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "account store unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, counters)
}

func (s *Server) getUsage(c echo.Context) error {
	customerID := c.Param("id")
	if customerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer id is required")
	}

	counters, err := s.usageSvc.GetUsage(c.Request().Context(), customerID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		if errors.Is(err, ports.ErrStoreUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "account store unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, counters)
}
