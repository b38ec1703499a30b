package services

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const derivedKeyLength = 32

// JWTService holds the platform signing key. It is immutable once built.
type JWTService interface {
	Sign(claims jwt.MapClaims) (string, error)
	Verify(tokenString string) (jwt.MapClaims, error)
}

type jwtService struct {
	secretKey []byte
	parser    *jwt.Parser
}

// KeyOption customizes how the signing key is derived from the secret.
type KeyOption func(*keyOptions)

type keyOptions struct {
	hkdfInfo string
	useHKDF  bool
}

// WithHKDF expands the secret with HKDF-SHA256 using info as the context label.
func WithHKDF(info string) KeyOption {
	return func(o *keyOptions) {
		o.useHKDF = true
		o.hkdfInfo = info
	}
}

// NewJWTService derives the HS256 key from secret. By default the secret bytes
// are the key, so any verifier holding the same secret can check our tokens.
func NewJWTService(secret string, opts ...KeyOption) (JWTService, error) {
	if secret == "" {
		return nil, ErrMissingSigningSecret
	}

	var o keyOptions
	for _, opt := range opts {
		opt(&o)
	}

	key := []byte(secret)
	if o.useHKDF {
		derived := make([]byte, derivedKeyLength)
		if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(o.hkdfInfo)), derived); err != nil {
			return nil, fmt.Errorf("derive signing key: %w", err)
		}
		key = derived
	}

	return &jwtService{
		secretKey: key,
		// exp is enforced by the validation service so it can report TokenExpired itself
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

func (s *jwtService) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign platform jwt: %w", err)
	}
	return signed, nil
}

func (s *jwtService) Verify(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
