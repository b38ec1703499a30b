package models

import (
	"fmt"
	"time"
)

// ExchangeType selects which credential is traded for a platform JWT
type ExchangeType string

const (
	ExchangeTypeAuthorizationCode ExchangeType = "authorization_code"
	ExchangeTypeCustomJWT         ExchangeType = "custom_jwt"
)

// Valid reports whether t is a supported exchange type
func (t ExchangeType) Valid() bool {
	return t == ExchangeTypeAuthorizationCode || t == ExchangeTypeCustomJWT
}

// ExchangeSource records which credential path minted a token
type ExchangeSource string

const (
	ExchangeSourceCodeExchange ExchangeSource = "provider_code_exchange"
	ExchangeSourceSessionToken ExchangeSource = "provider_session_token"
)

// ExchangeRequest is the body accepted by the token exchange endpoint
// @model ExchangeRequest
type ExchangeRequest struct {
	// @Description Which credential is being exchanged
	// @example "custom_jwt"
	ExchangeType ExchangeType `json:"exchange_type" example:"custom_jwt"`
	// @Description Identity provider authorization code (authorization_code only)
	AuthorizationCode string `json:"authorization_code,omitempty"`
	// @Description PKCE verifier matching the authorization code, if the provider needs one
	CodeVerifier string `json:"code_verifier,omitempty"`
	// @Description Identity provider session token (custom_jwt only)
	CurrentToken string `json:"current_token,omitempty"`
	// @Description Accepted for compatibility, not used
	RefreshToken string `json:"refresh_token,omitempty"`
	// @Description Claims merged into the issued token
	CustomClaims map[string]any `json:"custom_claims,omitempty"`
}

// ExchangeResponse is returned after a successful exchange
// @model ExchangeResponse
type ExchangeResponse struct {
	// @example "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	JWTToken string `json:"jwt_token"`
	// @Description Expiry as epoch seconds
	// @example 1735689600
	ExpiresAt int64 `json:"expires_at"`
	// @example "authorization_code"
	TokenType ExchangeType `json:"token_type"`
	// @Description Provider session, only for authorization_code exchanges
	Session *ProviderSession `json:"session,omitempty"`
}

// ValidationRequest is the body accepted by the validation endpoint
// @model ValidationRequest
type ValidationRequest struct {
	JWTToken       string `json:"jwt_token"`
	ValidationType string `json:"validation_type"`
}

// ValidationResponse is the result of validating a platform JWT
// @model ValidationResponse
type ValidationResponse struct {
	Valid     bool           `json:"valid"`
	Claims    map[string]any `json:"claims,omitempty"`
	ExpiresAt *int64         `json:"expires_at,omitempty"`
	Error     string         `json:"error,omitempty"`
	Message   string         `json:"message,omitempty"`
	Code      string         `json:"code,omitempty"`
}

// ProviderUser is the identity provider's user record (non-DB)
type ProviderUser struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud,omitempty"`
	Role             string         `json:"role,omitempty"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
}

// EmailVerified reports whether the provider has confirmed the user's email
func (u *ProviderUser) EmailVerified() bool {
	return u != nil && u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero()
}

// ProviderSession is the session returned by the provider's code exchange
type ProviderSession struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type,omitempty"`
	ExpiresIn    int64         `json:"expires_in,omitempty"`
	ExpiresAt    int64         `json:"expires_at,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	User         *ProviderUser `json:"user,omitempty"`
}

// ProviderError is a non-2xx answer from the identity provider
type ProviderError struct {
	Status  int
	Name    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("identity provider returned HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("identity provider returned HTTP %d (%s): %s", e.Status, e.Name, e.Message)
}
