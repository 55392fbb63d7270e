// Package requestmeta defines the typed context keys for request-scoped
// metadata (request id, idempotency key) and helpers to read them back.
package requestmeta

import "context"

// contextKey is unexported so keys from other packages can never collide
// with ours even if they share the underlying string.
type contextKey string

const (
	HeaderRequestID      = "X-Request-Id"
	HeaderIdempotencyKey = "X-Idempotency-Key"

	keyRequestID      contextKey = "request_id"
	keyIdempotencyKey contextKey = "idempotency_key"
)

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// WithIdempotencyKey returns a context carrying the idempotency key.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyIdempotencyKey, key)
}

// RequestID returns the request id, or "" if none was attached.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}

// IdempotencyKey returns the idempotency key, or "" if none was attached.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(keyIdempotencyKey).(string)
	return key
}
