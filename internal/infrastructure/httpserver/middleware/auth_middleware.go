package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ServiceAuthMiddleware authenticates the upstream pipeline on the internal
// API with HS256 service tokens. The webhook endpoint is excluded: its HMAC
// envelope signature is its authentication.
type ServiceAuthMiddleware struct {
	secret string
	logger *logrus.Logger
}

func NewServiceAuthMiddleware(secret string, logger *logrus.Logger) *ServiceAuthMiddleware {
	return &ServiceAuthMiddleware{secret: secret, logger: logger}
}

// RequireServiceToken creates middleware that validates the bearer token and
// sets the calling service name in the request context.
func (m *ServiceAuthMiddleware) RequireServiceToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(m.secret), nil
			})
			if err != nil || !token.Valid {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path}).Warn("service token validation failed")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid service token")
			}

			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if sub, _ := claims["sub"].(string); sub != "" {
					c.Set("service", sub)
				}
			}
			return next(c)
		}
	}
}
