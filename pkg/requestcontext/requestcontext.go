// Package requestcontext carries per-request values set by middleware.
package requestcontext

import (
	"context"

	id "agenda/pkg/domain"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	principalKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func WithPrincipal(ctx context.Context, p id.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Principal returns the authenticated caller. ok is false when no auth
// middleware ran for this request.
func Principal(ctx context.Context) (id.Principal, bool) {
	p, ok := ctx.Value(principalKey).(id.Principal)
	return p, ok
}
