package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable category of a token service failure.
type ErrorKind string

const (
	KindMissingParameter        ErrorKind = "missing_parameter"
	KindMalformedRequest        ErrorKind = "malformed_request"
	KindInvalidExchangeRequest  ErrorKind = "invalid_exchange_request"
	KindCodeExchangeFailed      ErrorKind = "code_exchange_failed"
	KindInvalidOrExpiredToken   ErrorKind = "invalid_or_expired_token"
	KindNoUserInExchange        ErrorKind = "no_user_in_exchange"
	KindInvalidSignature        ErrorKind = "invalid_signature"
	KindTokenExpired            ErrorKind = "token_expired"
	KindInvalidTokenType        ErrorKind = "invalid_token_type"
	KindInternalExchangeError   ErrorKind = "internal_exchange_error"
	KindInternalValidationError ErrorKind = "internal_validation_error"
	KindMissingSigningSecret    ErrorKind = "missing_signing_secret"
)

var kindStatus = map[ErrorKind]int{
	KindMissingParameter:        http.StatusBadRequest,
	KindMalformedRequest:        http.StatusBadRequest,
	KindInvalidExchangeRequest:  http.StatusBadRequest,
	KindCodeExchangeFailed:      http.StatusBadRequest,
	KindInvalidOrExpiredToken:   http.StatusUnauthorized,
	KindNoUserInExchange:        http.StatusUnauthorized,
	KindInvalidSignature:        http.StatusUnauthorized,
	KindTokenExpired:            http.StatusUnauthorized,
	KindInvalidTokenType:        http.StatusUnauthorized,
	KindInternalExchangeError:   http.StatusInternalServerError,
	KindInternalValidationError: http.StatusInternalServerError,
	KindMissingSigningSecret:    http.StatusInternalServerError,
}

var kindMessages = map[ErrorKind]string{
	KindMissingParameter:        "Missing required parameter",
	KindMalformedRequest:        "Request body must be a JSON object",
	KindInvalidExchangeRequest:  "Invalid exchange request",
	KindCodeExchangeFailed:      "Failed to exchange authorization code",
	KindInvalidOrExpiredToken:   "Invalid or expired token",
	KindNoUserInExchange:        "No user found in exchange",
	KindInvalidSignature:        "Invalid JWT signature",
	KindTokenExpired:            "JWT token has expired",
	KindInvalidTokenType:        "Invalid token type",
	KindInternalExchangeError:   "Internal server error during JWT exchange",
	KindInternalValidationError: "Internal server error during JWT validation",
	KindMissingSigningSecret:    "JWT signing secret is not configured",
}

var (
	// ErrMissingSigningSecret is returned when no signing secret is configured.
	ErrMissingSigningSecret = errors.New("signing secret is empty")
	// ErrInvalidSignature wraps every signature or token format failure.
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Error is a categorized failure carrying everything the HTTP envelope needs.
// Message maps to the envelope's "error", Detail to "message".
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  string
	Code    string
	Details string
	Err     error
}

func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Kind)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int {
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorCode returns Code, falling back to the kind.
func (e *Error) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func newError(kind ErrorKind, err error) *Error {
	msg, ok := kindMessages[kind]
	if !ok {
		msg = string(kind)
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// NewError builds an Error of the given kind with its default message.
func NewError(kind ErrorKind, err error) *Error {
	return newError(kind, err)
}

// InternalError wraps an unexpected failure, passing its text through as Detail.
func InternalError(kind ErrorKind, err error) *Error {
	e := newError(kind, err)
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// KindOf extracts the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ""
}
