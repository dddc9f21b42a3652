package core

import "context"

type contextKey string

const ctxKeyRequester contextKey = "requester"

// Requester identifies who started an operation. It travels with the
// context into background batches so their history record can name the
// caller.
type Requester struct {
	IPAddress string
	UserAgent string
}

// WithRequester attaches the caller to ctx.
func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, ctxKeyRequester, r)
}

// RequesterFromContext returns the caller attached to ctx, or the zero
// Requester.
func RequesterFromContext(ctx context.Context) Requester {
	if r, ok := ctx.Value(ctxKeyRequester).(Requester); ok {
		return r
	}
	return Requester{}
}
