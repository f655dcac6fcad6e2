// Package transport is the boundary between the ledger engine and the gateway.
// The engine only ever sees Snapshots coming back from Send; whether they came
// over HTTP or from the in-process sandbox is a wiring decision.
package transport

import "context"

// Method is an HTTP-style verb understood by every Transport.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// Transport sends one request and returns the decoded response. Implementations
// report failures as *payerror.TransportError, *payerror.APIError or
// *payerror.NotFoundError. path is relative, e.g. "payments/s-pay-1".
type Transport interface {
	Send(ctx context.Context, method Method, path string, body Snapshot) (Snapshot, error)
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, method Method, path string, body Snapshot) (Snapshot, error)

func (f Func) Send(ctx context.Context, method Method, path string, body Snapshot) (Snapshot, error) {
	return f(ctx, method, path, body)
}

type idempotencyKey struct{}

// WithIdempotencyKey marks every mutation sent with ctx as replayable under key.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKey returns the key attached by WithIdempotencyKey.
func IdempotencyKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey{}).(string)
	return key, ok && key != ""
}
