package services

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/civicpulse/platform-token/pkg/logger"
	"github.com/civicpulse/platform-token/pkg/models"
)

const testSecret = "test-platform-secret-0123456789abcdef"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var testClaimSettings = ClaimSettings{
	Issuer:      "civicpulse-platform",
	Audience:    "civicpulse-api",
	PlatformTag: "civicpulse",
}

// mockProvider is a hand-rolled IdentityProvider that counts calls.
type mockProvider struct {
	mu sync.Mutex

	user    *models.ProviderUser
	userErr error
	session *models.ProviderSession
	codeErr error

	getUserCalls      int
	codeExchangeCalls int
	lastCode          string
	lastVerifier      string
}

func (m *mockProvider) GetUser(_ context.Context, _ string) (*models.ProviderUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getUserCalls++
	return m.user, m.userErr
}

func (m *mockProvider) ExchangeCodeForSession(_ context.Context, code, verifier string) (*models.ProviderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codeExchangeCalls++
	m.lastCode = code
	m.lastVerifier = verifier
	return m.session, m.codeErr
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getUserCalls + m.codeExchangeCalls
}

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	exchange string
	keys     []string
	events   []any
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, routingKey string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchange = exchange
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, message)
	return p.err
}

func testUser() *models.ProviderUser {
	confirmed := testNow.Add(-24 * time.Hour)
	return &models.ProviderUser{
		ID:               "6f1c2f0e-3c4b-4a5e-9d0a-1b2c3d4e5f60",
		Email:            "ada@civicpulse.test",
		Role:             "authenticated",
		EmailConfirmedAt: &confirmed,
		AppMetadata:      map[string]any{"provider": "email"},
		UserMetadata:     map[string]any{"district": "7"},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestSigner() JWTService {
	signer, err := NewJWTService(testSecret)
	if err != nil {
		panic(err)
	}
	return signer
}

func newTestExchange(provider IdentityProvider, signer JWTService, opts ...Option) ExchangeService {
	opts = append([]Option{WithClock(fixedClock(testNow))}, opts...)
	return NewExchangeService(
		provider,
		signer,
		ExchangeConfig{Claims: testClaimSettings, TTL: time.Hour},
		logger.Discard(),
		noop.NewTracerProvider(),
		opts...,
	)
}

func newTestValidation(signer JWTService, now time.Time, opts ...Option) ValidationService {
	opts = append([]Option{WithClock(fixedClock(now))}, opts...)
	return NewValidationService(signer, logger.Discard(), noop.NewTracerProvider(), opts...)
}
