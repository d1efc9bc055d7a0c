package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/captionly/metering/internal/core/domain/event"
)

func (s *Server) getAuditEntries(c echo.Context) error {
	var filter event.AuditFilter
	if err := c.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filter parameters")
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	entries, total, err := s.auditTrail.GetEntries(c.Request().Context(), &filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entries": entries, "total": total})
}
