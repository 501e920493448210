package middleware

import (
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// multipartOverhead is the slack allowed above the file size for
// multipart boundaries and headers.
const multipartOverhead = 64 * 1024

// RequestID tags every request and response with X-Request-ID
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestID()
}

// RequestLogger logs one line per request; 5xx responses are logged at error level
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:       true,
		LogURIPath:      true,
		LogRoutePath:    true,
		LogStatus:       true,
		LogLatency:      true,
		LogRemoteIP:     true,
		LogResponseSize: true,
		LogRequestID:    true,
		LogError:        true,
		HandleError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= 500 {
				level = slog.LevelError
			}

			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.String("route", v.RoutePath),
				slog.Int("status", v.Status),
				slog.Int64("bytes_out", v.ResponseSize),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				attrs = append(attrs, slog.String("request_id", v.RequestID))
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// UploadBodyLimit caps request bodies at the file size limit plus multipart overhead
func UploadBodyLimit(maxFileSize int64) echo.MiddlewareFunc {
	limitKB := (maxFileSize + multipartOverhead + 1023) / 1024
	return middleware.BodyLimit(fmt.Sprintf("%dKiB", limitKB))
}

// Recover turns a handler panic into a 500 and logs it with its stack
func Recover(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Any("error", err),
				slog.String("stack", string(stack)))
			return err
		},
	})
}
