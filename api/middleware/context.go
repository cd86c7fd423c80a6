package middleware

import (
	"context"

	"github.com/enamelgeorgia/storefront/pkg/types"
)

type contextKey string

const ctxCaller contextKey = "caller"

// CallerFromContext returns the identity seeded by the Identity
// middleware. The zero value is an anonymous guest.
func CallerFromContext(ctx context.Context) types.CallerContext {
	if ctx == nil {
		return types.CallerContext{Role: types.RoleGuest}
	}
	if caller, ok := ctx.Value(ctxCaller).(types.CallerContext); ok {
		return caller
	}
	return types.CallerContext{Role: types.RoleGuest}
}

// WithCaller injects a caller identity, used by handlers under test.
func WithCaller(ctx context.Context, caller types.CallerContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCaller, caller)
}
