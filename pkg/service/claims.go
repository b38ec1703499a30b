package services

import (
	"maps"

	"github.com/golang-jwt/jwt/v5"

	"github.com/civicpulse/platform-token/pkg/models"
)

// Claim names written into every platform JWT.
const (
	ClaimTokenType      = "token_type"
	ClaimExchangeSource = "exchange_source"
	ClaimPlatform       = "platform"
	ClaimRole           = "role"
	ClaimEmail          = "email"
	ClaimEmailVerified  = "email_verified"
	ClaimAppMetadata    = "app_metadata"
	ClaimUserMetadata   = "user_metadata"

	DefaultRole = "authenticated"
)

// ClaimSettings are the fixed platform values stamped on every token.
type ClaimSettings struct {
	Issuer      string
	Audience    string
	PlatformTag string
}

// ClaimInput is everything that varies per issued token.
type ClaimInput struct {
	User           *models.ProviderUser
	CustomClaims   map[string]any
	ExchangeType   models.ExchangeType
	ExchangeSource models.ExchangeSource
	IssuedAt       int64
	ExpiresAt      int64
	TokenID        string
}

// BuildPlatformClaims assembles the claim set in three layers: platform
// defaults, then caller custom claims (last wins), then token_type and
// exchange_source, which callers can never override.
func BuildPlatformClaims(settings ClaimSettings, in ClaimInput) jwt.MapClaims {
	claims := jwt.MapClaims{
		"iss":              settings.Issuer,
		"aud":              settings.Audience,
		"exp":              in.ExpiresAt,
		"iat":              in.IssuedAt,
		"jti":              in.TokenID,
		ClaimPlatform:      settings.PlatformTag,
		ClaimRole:          DefaultRole,
		ClaimEmailVerified: false,
	}

	if user := in.User; user != nil {
		claims["sub"] = user.ID
		claims[ClaimEmail] = user.Email
		claims[ClaimEmailVerified] = user.EmailVerified()
		if user.AppMetadata != nil {
			claims[ClaimAppMetadata] = user.AppMetadata
		}
		if user.UserMetadata != nil {
			claims[ClaimUserMetadata] = user.UserMetadata
		}
		if user.Role != "" {
			claims[ClaimRole] = user.Role
		}
	}

	maps.Copy(claims, in.CustomClaims)

	claims[ClaimTokenType] = string(in.ExchangeType)
	claims[ClaimExchangeSource] = string(in.ExchangeSource)
	return claims
}
