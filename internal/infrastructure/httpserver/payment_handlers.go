package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/captionly/metering/internal/core/domain/payment"
	"github.com/captionly/metering/internal/core/ports"
)

func (s *Server) getPayment(c echo.Context) error {
	paymentIntentID := c.Param("id")
	if paymentIntentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "payment intent id is required")
	}

	p, err := s.paymentLedger.GetPayment(c.Request().Context(), paymentIntentID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "payment not found")
		}
		if errors.Is(err, ports.ErrStoreUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "payment store unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
