package services

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/platform-token/pkg/models"
)

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr), "expected *services.Error, got %T", err)
	require.Equal(t, kind, svcErr.Kind)
	return svcErr
}

func TestExchange_CustomJWT(t *testing.T) {
	provider := &mockProvider{user: testUser()}
	signer := newTestSigner()
	svc := newTestExchange(provider, signer, WithTokenIDGenerator(func() string { return "jti-fixed" }))

	resp, err := svc.Exchange(context.Background(), models.ExchangeRequest{
		ExchangeType: models.ExchangeTypeCustomJWT,
		CurrentToken: "provider-access-token",
		CustomClaims: map[string]any{"role": "admin", "district_id": "d-42"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExchangeTypeCustomJWT, resp.TokenType)
	assert.Equal(t, testNow.Unix()+3600, resp.ExpiresAt)
	assert.Nil(t, resp.Session)
	assert.Equal(t, 1, provider.getUserCalls)
	assert.Equal(t, 0, provider.codeExchangeCalls)

	claims, err := signer.Verify(resp.JWTToken)
	require.NoError(t, err)
	assert.Equal(t, "custom_jwt", claims[ClaimTokenType])
	assert.Equal(t, "provider_session_token", claims[ClaimExchangeSource])
	assert.Equal(t, "admin", claims[ClaimRole])
	assert.Equal(t, "d-42", claims["district_id"])
	assert.Equal(t, "jti-fixed", claims["jti"])
	assert.Equal(t, float64(testNow.Unix()+3600), claims["exp"])
	assert.Equal(t, float64(testNow.Unix()), claims["iat"])
	assert.Equal(t, testUser().ID, claims["sub"])
}

func TestExchange_AuthorizationCode(t *testing.T) {
	session := &models.ProviderSession{
		AccessToken:  "provider-access",
		TokenType:    "bearer",
		ExpiresIn:    3600,
		RefreshToken: "provider-refresh",
		User:         testUser(),
	}
	provider := &mockProvider{session: session}
	signer := newTestSigner()
	svc := newTestExchange(provider, signer)

	resp, err := svc.Exchange(context.Background(), models.ExchangeRequest{
		ExchangeType:      models.ExchangeTypeAuthorizationCode,
		AuthorizationCode: "auth-code-123",
		CodeVerifier:      "verifier-abc",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExchangeTypeAuthorizationCode, resp.TokenType)
	assert.Same(t, session, resp.Session)
	assert.Equal(t, "auth-code-123", provider.lastCode)
	assert.Equal(t, "verifier-abc", provider.lastVerifier)
	assert.Equal(t, 0, provider.getUserCalls)

	claims, err := signer.Verify(resp.JWTToken)
	require.NoError(t, err)
	assert.Equal(t, "authorization_code", claims[ClaimTokenType])
	assert.Equal(t, "provider_code_exchange", claims[ClaimExchangeSource])
	assert.Equal(t, true, claims[ClaimEmailVerified])
}

func TestExchange_UniqueTokenIDs(t *testing.T) {
	provider := &mockProvider{user: testUser()}
	signer := newTestSigner()
	svc := newTestExchange(provider, signer)

	req := models.ExchangeRequest{ExchangeType: models.ExchangeTypeCustomJWT, CurrentToken: "t"}
	first, err := svc.Exchange(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Exchange(context.Background(), req)
	require.NoError(t, err)

	c1, err := signer.Verify(first.JWTToken)
	require.NoError(t, err)
	c2, err := signer.Verify(second.JWTToken)
	require.NoError(t, err)
	assert.NotEqual(t, c1["jti"], c2["jti"])
}

func TestExchange_MissingExchangeType(t *testing.T) {
	provider := &mockProvider{user: testUser()}
	svc := newTestExchange(provider, newTestSigner())

	_, err := svc.Exchange(context.Background(), models.ExchangeRequest{CurrentToken: "t"})

	e := requireKind(t, err, KindMissingParameter)
	assert.Equal(t, "Missing exchange_type parameter", e.Message)
	assert.Equal(t, 0, provider.calls())
}

func TestExchange_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  models.ExchangeRequest
	}{
		{"code type without code", models.ExchangeRequest{ExchangeType: models.ExchangeTypeAuthorizationCode}},
		{"custom type without token", models.ExchangeRequest{ExchangeType: models.ExchangeTypeCustomJWT}},
		{"code type with only a token", models.ExchangeRequest{ExchangeType: models.ExchangeTypeAuthorizationCode, CurrentToken: "t"}},
		{"unknown type", models.ExchangeRequest{ExchangeType: "refresh_token", RefreshToken: "r"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{user: testUser()}
			svc := newTestExchange(provider, newTestSigner())

			_, err := svc.Exchange(context.Background(), tt.req)

			e := requireKind(t, err, KindInvalidExchangeRequest)
			assert.Equal(t, exchangeGuidance, e.Details)
			assert.Equal(t, 0, provider.calls())
		})
	}
}

func TestExchange_CodeExchangeFailure(t *testing.T) {
	t.Run("provider error carries its code", func(t *testing.T) {
		provider := &mockProvider{codeErr: &models.ProviderError{
			Status:  404,
			Name:    "flow_state_not_found",
			Message: "invalid flow state, no valid flow state found",
		}}
		svc := newTestExchange(provider, newTestSigner())

		_, err := svc.Exchange(context.Background(), models.ExchangeRequest{
			ExchangeType:      models.ExchangeTypeAuthorizationCode,
			AuthorizationCode: "stale",
		})

		e := requireKind(t, err, KindCodeExchangeFailed)
		assert.Equal(t, "Failed to exchange authorization code", e.Message)
		assert.Equal(t, "invalid flow state, no valid flow state found", e.Detail)
		assert.Equal(t, "flow_state_not_found", e.ErrorCode())
	})

	t.Run("transport error falls back to kind code", func(t *testing.T) {
		provider := &mockProvider{codeErr: errors.New("dial tcp: connection refused")}
		svc := newTestExchange(provider, newTestSigner())

		_, err := svc.Exchange(context.Background(), models.ExchangeRequest{
			ExchangeType:      models.ExchangeTypeAuthorizationCode,
			AuthorizationCode: "code",
		})

		e := requireKind(t, err, KindCodeExchangeFailed)
		assert.Equal(t, "dial tcp: connection refused", e.Detail)
		assert.Equal(t, "code_exchange_failed", e.ErrorCode())
	})
}

func TestExchange_NoUser(t *testing.T) {
	tests := []struct {
		name    string
		session *models.ProviderSession
	}{
		{"nil session", nil},
		{"session without user", &models.ProviderSession{AccessToken: "a"}},
		{"user without id", &models.ProviderSession{User: &models.ProviderUser{Email: "x@y.z"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestExchange(&mockProvider{session: tt.session}, newTestSigner())

			_, err := svc.Exchange(context.Background(), models.ExchangeRequest{
				ExchangeType:      models.ExchangeTypeAuthorizationCode,
				AuthorizationCode: "code",
			})

			requireKind(t, err, KindNoUserInExchange)
		})
	}
}

func TestExchange_InvalidProviderToken(t *testing.T) {
	t.Run("provider rejects token", func(t *testing.T) {
		provider := &mockProvider{userErr: &models.ProviderError{Status: 401, Name: "bad_jwt", Message: "invalid JWT: token is expired"}}
		svc := newTestExchange(provider, newTestSigner())

		_, err := svc.Exchange(context.Background(), models.ExchangeRequest{
			ExchangeType: models.ExchangeTypeCustomJWT,
			CurrentToken: "expired",
		})

		e := requireKind(t, err, KindInvalidOrExpiredToken)
		assert.Equal(t, "invalid JWT: token is expired", e.Detail)
		assert.Equal(t, 401, e.Status())
	})

	t.Run("provider returns no user", func(t *testing.T) {
		svc := newTestExchange(&mockProvider{}, newTestSigner())

		_, err := svc.Exchange(context.Background(), models.ExchangeRequest{
			ExchangeType: models.ExchangeTypeCustomJWT,
			CurrentToken: "t",
		})

		requireKind(t, err, KindInvalidOrExpiredToken)
	})
}

type failingSigner struct{}

func (failingSigner) Sign(jwt.MapClaims) (string, error) { return "", errors.New("hmac unavailable") }
func (failingSigner) Verify(string) (jwt.MapClaims, error) {
	return nil, errors.New("hmac unavailable")
}

func TestExchange_SigningFailure(t *testing.T) {
	svc := newTestExchange(&mockProvider{user: testUser()}, failingSigner{})

	_, err := svc.Exchange(context.Background(), models.ExchangeRequest{
		ExchangeType: models.ExchangeTypeCustomJWT,
		CurrentToken: "t",
	})

	e := requireKind(t, err, KindInternalExchangeError)
	assert.Equal(t, "hmac unavailable", e.Detail)
	assert.Equal(t, 500, e.Status())
}

func TestExchange_PublishesIssuedEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestExchange(&mockProvider{user: testUser()}, newTestSigner(),
		WithEventPublisher(pub, "platform.tokens"),
		WithTokenIDGenerator(func() string { return "jti-evt" }),
	)

	resp, err := svc.Exchange(context.Background(), models.ExchangeRequest{
		ExchangeType: models.ExchangeTypeCustomJWT,
		CurrentToken: "t",
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "platform.tokens", pub.exchange)
	assert.Equal(t, []string{models.RoutingKeyTokenIssued}, pub.keys)

	event, ok := pub.events[0].(models.TokenIssuedEvent)
	require.True(t, ok)
	assert.Equal(t, "jti-evt", event.JTI)
	assert.Equal(t, testUser().ID, event.Subject)
	assert.Equal(t, models.ExchangeTypeCustomJWT, event.TokenType)
	assert.Equal(t, models.ExchangeSourceSessionToken, event.ExchangeSource)
	assert.Equal(t, resp.ExpiresAt, event.ExpiresAt)
}

func TestExchange_PublishFailureIsTolerated(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("channel closed")}
	svc := newTestExchange(&mockProvider{user: testUser()}, newTestSigner(), WithEventPublisher(pub, "platform.tokens"))

	resp, err := svc.Exchange(context.Background(), models.ExchangeRequest{
		ExchangeType: models.ExchangeTypeCustomJWT,
		CurrentToken: "t",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.JWTToken)
	assert.Len(t, pub.events, 1)
}

func TestExchange_NoEventOnFailure(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestExchange(&mockProvider{userErr: errors.New("nope")}, newTestSigner(), WithEventPublisher(pub, "platform.tokens"))

	_, err := svc.Exchange(context.Background(), models.ExchangeRequest{
		ExchangeType: models.ExchangeTypeCustomJWT,
		CurrentToken: "t",
	})

	require.Error(t, err)
	assert.Empty(t, pub.events)
}
