package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicpulse/platform-token/pkg/models"
)

const exchangeGuidance = "authorization_code is required when exchange_type is authorization_code; " +
	"current_token is required when exchange_type is custom_jwt"

// IdentityProvider is the external identity system the exchange trusts.
type IdentityProvider interface {
	GetUser(ctx context.Context, accessToken string) (*models.ProviderUser, error)
	ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*models.ProviderSession, error)
}

// ExchangeService trades provider credentials for platform JWTs.
type ExchangeService interface {
	Exchange(ctx context.Context, req models.ExchangeRequest) (*models.ExchangeResponse, error)
}

// ExchangeConfig holds the fixed issuance parameters.
type ExchangeConfig struct {
	Claims ClaimSettings
	TTL    time.Duration
}

type exchangeService struct {
	provider IdentityProvider
	signer   JWTService
	cfg      ExchangeConfig
	opts     options
	logger   *logrus.Logger
	tracer   trace.TracerProvider
}

// NewExchangeService wires the exchange flow.
func NewExchangeService(
	provider IdentityProvider,
	signer JWTService,
	cfg ExchangeConfig,
	logger *logrus.Logger,
	tracer trace.TracerProvider,
	opts ...Option,
) ExchangeService {
	o := options{now: time.Now, newTokenID: func() string { return uuid.New().String() }}
	for _, opt := range opts {
		opt(&o)
	}
	return &exchangeService{
		provider: provider,
		signer:   signer,
		cfg:      cfg,
		opts:     o,
		logger:   logger,
		tracer:   tracer,
	}
}

func (s *exchangeService) trace(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := s.tracer.Tracer("service.token")
	return tracer.Start(ctx, name)
}

func (s *exchangeService) Exchange(ctx context.Context, req models.ExchangeRequest) (*models.ExchangeResponse, error) {
	ctx, span := s.trace(ctx, "token.exchange")
	defer span.End()

	resp, err := s.exchange(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return nil, err
	}
	span.SetStatus(codes.Ok, "token issued")
	return resp, nil
}

func (s *exchangeService) exchange(ctx context.Context, req models.ExchangeRequest) (*models.ExchangeResponse, error) {
	if req.ExchangeType == "" {
		e := newError(KindMissingParameter, nil)
		e.Message = "Missing exchange_type parameter"
		return nil, e
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("token.exchange_type", string(req.ExchangeType)))

	var (
		user    *models.ProviderUser
		session *models.ProviderSession
		source  models.ExchangeSource
	)

	switch {
	case req.ExchangeType == models.ExchangeTypeAuthorizationCode && req.AuthorizationCode != "":
		sess, err := s.provider.ExchangeCodeForSession(ctx, req.AuthorizationCode, req.CodeVerifier)
		if err != nil {
			return nil, codeExchangeError(err)
		}
		if sess != nil {
			session = sess
			user = sess.User
		}
		source = models.ExchangeSourceCodeExchange

	case req.ExchangeType == models.ExchangeTypeCustomJWT && req.CurrentToken != "":
		u, err := s.provider.GetUser(ctx, req.CurrentToken)
		if err != nil || u == nil {
			e := newError(KindInvalidOrExpiredToken, err)
			if err != nil {
				e.Detail = providerMessage(err)
			}
			return nil, e
		}
		user = u
		source = models.ExchangeSourceSessionToken

	default:
		e := newError(KindInvalidExchangeRequest, nil)
		e.Detail = fmt.Sprintf("Unsupported exchange_type %q or missing credential", req.ExchangeType)
		e.Details = exchangeGuidance
		return nil, e
	}

	if user == nil || user.ID == "" {
		return nil, newError(KindNoUserInExchange, nil)
	}

	now := s.opts.now().Unix()
	expiresAt := now + int64(s.cfg.TTL/time.Second)
	tokenID := s.opts.newTokenID()

	claims := BuildPlatformClaims(s.cfg.Claims, ClaimInput{
		User:           user,
		CustomClaims:   req.CustomClaims,
		ExchangeType:   req.ExchangeType,
		ExchangeSource: source,
		IssuedAt:       now,
		ExpiresAt:      expiresAt,
		TokenID:        tokenID,
	})

	signed, err := s.signer.Sign(claims)
	if err != nil {
		return nil, InternalError(KindInternalExchangeError, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":       user.ID,
		"exchange_type": req.ExchangeType,
		"jti":           tokenID,
	}).Info("Platform JWT issued")

	s.publishIssued(ctx, models.TokenIssuedEvent{
		JTI:            tokenID,
		Subject:        user.ID,
		TokenType:      req.ExchangeType,
		ExchangeSource: source,
		IssuedAt:       now,
		ExpiresAt:      expiresAt,
	})

	return &models.ExchangeResponse{
		JWTToken:  signed,
		ExpiresAt: expiresAt,
		TokenType: req.ExchangeType,
		Session:   session,
	}, nil
}

// publishIssued is best effort: a broker failure never fails the exchange.
func (s *exchangeService) publishIssued(ctx context.Context, event models.TokenIssuedEvent) {
	if s.opts.publisher == nil {
		return
	}
	if err := s.opts.publisher.Publish(ctx, s.opts.eventExchange, models.RoutingKeyTokenIssued, event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"jti":   event.JTI,
			"error": err.Error(),
		}).Warn("Failed to publish token.issued event")
	}
}

func codeExchangeError(err error) *Error {
	e := newError(KindCodeExchangeFailed, err)
	e.Detail = providerMessage(err)
	e.Code = string(KindCodeExchangeFailed)

	var providerErr *models.ProviderError
	if errors.As(err, &providerErr) && providerErr.Name != "" {
		e.Code = providerErr.Name
	}
	return e
}

func providerMessage(err error) string {
	var providerErr *models.ProviderError
	if errors.As(err, &providerErr) && providerErr.Message != "" {
		return providerErr.Message
	}
	return err.Error()
}
