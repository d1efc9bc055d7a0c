package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/ports"
)

func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}
	signature := c.Request().Header.Get(event.SignatureHeader)

	outcome, err := s.ingestor.Process(c.Request().Context(), body, signature)
	if err != nil {
		if errors.Is(err, event.ErrInvalidSignature) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook signature")
		}
		if errors.Is(err, ports.ErrStoreUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "event store unavailable, retry delivery")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	webhookEventsTotal.WithLabelValues(string(outcome.Type), string(outcome.Status)).Inc()

	// Downstream failures are acknowledged so the provider stops redelivering;
	// the audit trail keeps the error for replay.
	return c.JSON(http.StatusOK, map[string]interface{}{
		"received": true,
		"event_id": outcome.EventID,
		"status":   outcome.Status,
	})
}
