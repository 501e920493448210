// Package middleware provides HTTP middleware for the attachments API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
)

// APIKeyAuth validates the bearer token in the Authorization header.
// An empty apiKey disables the check. Comparison is constant-time.
func APIKeyAuth(apiKey string, secLogger *logger.SecurityLogger, log *slog.Logger) echo.MiddlewareFunc {
	if apiKey == "" && log != nil {
		log.Warn("API_KEY not set - API is UNSECURED")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()

			// Skip auth for health endpoints
			if strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/ready") {
				return next(c)
			}

			if apiKey == "" {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				if secLogger != nil {
					secLogger.AuthFailure(c.RealIP(), path, "missing authorization header")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "missing authorization header",
					"code":  "UNAUTHORIZED",
				})
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				if secLogger != nil {
					secLogger.AuthFailure(c.RealIP(), path, "invalid API key")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "invalid API key",
					"code":  "UNAUTHORIZED",
				})
			}

			return next(c)
		}
	}
}
