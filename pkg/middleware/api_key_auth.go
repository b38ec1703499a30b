package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/civicpulse/platform-token/pkg/common"
)

// APIKeyHeader carries the function gateway key
const APIKeyHeader = "apikey"

// APIKeyAuthMiddleware rejects requests whose apikey header does not match
// expectedApiKey. An empty expectedApiKey disables the check.
func APIKeyAuthMiddleware(expectedApiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if expectedApiKey == "" {
			return next
		}
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return next(c)
			}

			apiKey := c.Request().Header.Get(APIKeyHeader)
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedApiKey)) != 1 {
				return c.JSON(http.StatusUnauthorized, common.NewErrorResponse(
					"Invalid or missing API key", "", "invalid_api_key", ""))
			}
			return next(c)
		}
	}
}
