package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/civicpulse/platform-token/pkg/common"
	"github.com/civicpulse/platform-token/pkg/models"
	services "github.com/civicpulse/platform-token/pkg/service"
)

// JWTAuthMiddleware protects downstream platform APIs with platform JWTs
// minted by the exchange endpoint.
type JWTAuthMiddleware struct {
	logger    *logrus.Logger
	validator services.ValidationService
	tokenType models.ExchangeType
}

// NewJWTAuthMiddleware creates a middleware accepting tokens of tokenType
func NewJWTAuthMiddleware(validator services.ValidationService, tokenType models.ExchangeType, logger *logrus.Logger) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{
		logger:    logger,
		validator: validator,
		tokenType: tokenType,
	}
}

func unauthorized(c echo.Context, message, code string) error {
	return c.JSON(http.StatusUnauthorized, common.NewErrorResponse(message, "", code, ""))
}

// RequireAuth validates the bearer token and stores its claims on the request
func (m *JWTAuthMiddleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c, "Authorization header is required", "missing_authorization_header")
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				return unauthorized(c, "Authorization header must start with 'Bearer '", "invalid_authorization_header")
			}
			if token = strings.TrimSpace(token); token == "" {
				return unauthorized(c, "Token is required", "missing_token")
			}

			result, err := m.validator.Validate(c.Request().Context(), models.ValidationRequest{
				JWTToken:       token,
				ValidationType: string(m.tokenType),
			})
			if err != nil {
				var svcErr *services.Error
				if !errors.As(err, &svcErr) || svcErr.Status() >= http.StatusInternalServerError {
					m.logger.WithError(err).Error("Platform JWT validation failed")
					return c.JSON(http.StatusInternalServerError, common.NewErrorResponse(
						"Internal server error during JWT validation", "", string(services.KindInternalValidationError), ""))
				}
				m.logger.WithField("kind", svcErr.Kind).Warn("Invalid platform JWT")
				return unauthorized(c, svcErr.Message, svcErr.ErrorCode())
			}

			subject, _ := result.Claims["sub"].(string)
			c.Set(common.EchoClaimsKey, result.Claims)
			c.Set(common.EchoUserIDKey, subject)

			req := c.Request()
			ctx := common.WithUserID(req.Context(), subject)
			ctx = common.WithClaims(ctx, result.Claims)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// RequireRole rejects tokens whose role claim is not one of roles.
// It must run after RequireAuth.
func (m *JWTAuthMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(common.EchoClaimsKey).(map[string]any)
			if !ok {
				return unauthorized(c, "No platform token on request", "missing_token")
			}

			role, _ := claims[services.ClaimRole].(string)
			if !slices.Contains(roles, role) {
				return c.JSON(http.StatusForbidden, common.NewErrorResponse(
					"Insufficient role", "required one of: "+strings.Join(roles, ", "), "insufficient_role", ""))
			}
			return next(c)
		}
	}
}
