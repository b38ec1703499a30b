package helpers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/civicpulse/platform-token/pkg/common"
)

const maxRequestIDLength = 128

func GetTraceId(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().Header.Get("X-Trace-Id")
}

// GetRequestId returns the request ID assigned by the request ID middleware,
// falling back to the inbound X-Request-Id or X-Trace-Id header.
func GetRequestId(c echo.Context) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Get(common.EchoRequestIDKey).(string); ok && id != "" {
		return id
	}
	if c.Request() == nil {
		return ""
	}
	if id := SanitizeRequestID(c.Request().Header.Get(echo.HeaderXRequestID)); id != "" {
		return id
	}
	return SanitizeRequestID(GetTraceId(c))
}

// NewRequestID returns a caller supplied ID when it is safe to log, or a fresh UUID.
func NewRequestID(inbound string) string {
	if id := SanitizeRequestID(inbound); id != "" {
		return id
	}
	return uuid.NewString()
}

// SanitizeRequestID drops IDs that are too long or contain anything other
// than printable ASCII.
func SanitizeRequestID(id string) string {
	if id == "" || len(id) > maxRequestIDLength {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return ""
		}
	}
	return id
}
