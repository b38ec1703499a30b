package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicpulse/platform-token/pkg/models"
)

// ValidationService verifies platform JWTs.
type ValidationService interface {
	Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResponse, error)
}

type validationService struct {
	signer JWTService
	opts   options
	logger *logrus.Logger
	tracer trace.TracerProvider
}

// NewValidationService wires the validation flow. Tokens without exp are
// accepted unless WithRequireExpiry(true) is given.
func NewValidationService(
	signer JWTService,
	logger *logrus.Logger,
	tracer trace.TracerProvider,
	opts ...Option,
) ValidationService {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &validationService{
		signer: signer,
		opts:   o,
		logger: logger,
		tracer: tracer,
	}
}

func (s *validationService) Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResponse, error) {
	tracer := s.tracer.Tracer("service.token")
	_, span := tracer.Start(ctx, "token.validate")
	defer span.End()

	resp, err := s.validate(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("token.type", req.ValidationType))
	span.SetStatus(codes.Ok, "token valid")
	return resp, nil
}

func (s *validationService) validate(req models.ValidationRequest) (*models.ValidationResponse, error) {
	if req.JWTToken == "" || req.ValidationType == "" {
		e := newError(KindMissingParameter, nil)
		e.Message = "Missing jwt_token or validation_type parameter"
		return nil, e
	}

	claims, err := s.signer.Verify(req.JWTToken)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return nil, newError(KindInvalidSignature, err)
		}
		return nil, InternalError(KindInternalValidationError, err)
	}

	exp, hasExp, err := expiryOf(claims)
	if err != nil {
		return nil, newError(KindInvalidSignature, err)
	}
	now := s.opts.now().Unix()
	switch {
	case hasExp && exp < float64(now):
		return nil, newError(KindTokenExpired, nil)
	case !hasExp && s.opts.requireExpiry:
		e := newError(KindTokenExpired, nil)
		e.Detail = "token has no exp claim"
		return nil, e
	}

	tokenType, _ := claims[ClaimTokenType].(string)
	if tokenType != req.ValidationType {
		e := newError(KindInvalidTokenType, nil)
		e.Detail = fmt.Sprintf("expected %q, got %q", req.ValidationType, tokenType)
		return nil, e
	}

	subject, _ := claims["sub"].(string)
	s.logger.WithFields(logrus.Fields{
		"subject":    subject,
		"token_type": tokenType,
	}).Info("Platform JWT validated")

	resp := &models.ValidationResponse{
		Valid:  true,
		Claims: map[string]any(claims),
	}
	if hasExp {
		expiresAt := int64(exp)
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// expiryOf reads exp as epoch seconds. A present but non-numeric exp is a
// format failure.
func expiryOf(claims jwt.MapClaims) (float64, bool, error) {
	raw, ok := claims["exp"]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("exp claim is not numeric: %w", err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("exp claim has unsupported type %T", raw)
	}
}
