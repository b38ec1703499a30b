package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DefaultAllowHeaders are the request headers browser clients of the token
// endpoints send.
var DefaultAllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// CORSMiddleware allows any origin and answers preflight requests with an
// empty 200.
func CORSMiddleware(allowHeaders ...string) echo.MiddlewareFunc {
	if len(allowHeaders) == 0 {
		allowHeaders = DefaultAllowHeaders
	}
	headers := strings.Join(allowHeaders, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowHeaders, headers)

			if c.Request().Method == http.MethodOptions {
				h.Set(echo.HeaderAccessControlAllowMethods, "POST, GET, OPTIONS")
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
