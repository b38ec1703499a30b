package common

import "context"

type ctxKey int

const (
	userIDKey ctxKey = iota
	requestIDKey
	claimsKey
)

// Echo context keys
const (
	EchoRequestIDKey = "request_id"
	EchoClaimsKey    = "claims"
	EchoUserIDKey    = "user_id"
)

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	id, ok := v.(string)
	return id, ok
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// WithClaims stores verified platform JWT claims on ctx.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Claims(ctx context.Context) (map[string]any, bool) {
	c, ok := ctx.Value(claimsKey).(map[string]any)
	return c, ok
}
