package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/civicpulse/platform-token/pkg/common"
	"github.com/civicpulse/platform-token/pkg/helpers"
)

const startTimeKey = "startTime"

// RequestIDMiddleware assigns every request an ID, reusing a safe inbound
// X-Request-Id, and echoes it back on the response.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := helpers.NewRequestID(req.Header.Get(echo.HeaderXRequestID))

			c.Set(common.EchoRequestIDKey, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(common.WithRequestID(req.Context(), id)))

			return next(c)
		}
	}
}

// RequestLoggerMiddleware logs one line per request with its status and latency.
// Bodies and headers are never logged.
func RequestLoggerMiddleware(logger *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(startTimeKey, time.Now())

			err := next(c)
			if err != nil {
				// let echo's error handler write the response first
				c.Error(err)
			}

			status := c.Response().Status
			entry := logger.WithFields(logrus.Fields{
				"request_id": helpers.GetRequestId(c),
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     status,
				"latency_ms": GetProcessingTime(c),
			})

			switch {
			case status >= 500:
				entry.Error("Request completed")
			case status >= 400:
				entry.Warn("Request completed")
			default:
				entry.Info("Request completed")
			}
			return nil
		}
	}
}

// GetProcessingTime returns the processing time in milliseconds
func GetProcessingTime(c echo.Context) int64 {
	start, ok := c.Get(startTimeKey).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start).Milliseconds()
}
