// internal/auth/context.go
package auth

import (
	"context"

	"invoiceapi/internal/contextutil"
)

// RequestContext is the request-scoped result of a successful resolution.
// It is created once per request by the middleware and stored by value.
type RequestContext struct {
	principal     Principal
	correlationID string
}

// NewRequestContext bundles a principal with the request's correlation id.
func NewRequestContext(principal Principal, correlationID string) RequestContext {
	return RequestContext{principal: principal, correlationID: correlationID}
}

// Principal returns the resolved principal.
func (rc RequestContext) Principal() Principal { return rc.principal }

// CorrelationID returns the request's correlation id.
func (rc RequestContext) CorrelationID() string { return rc.correlationID }

// TenantID is shorthand for Principal().TenantID().
func (rc RequestContext) TenantID() string { return rc.principal.tenantID }

type requestContextKey struct{}

// ContextWithRequestContext attaches rc to ctx.
func ContextWithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the RequestContext attached by the middleware.
func RequestContextFrom(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(RequestContext)
	return rc, ok
}

// PrincipalFromContext returns the resolved principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	rc, ok := RequestContextFrom(ctx)
	if !ok {
		return Principal{}, false
	}
	return rc.principal, true
}

// CorrelationID returns the correlation id of the request: the one recorded
// in the RequestContext, or the request id when no principal was resolved.
func CorrelationID(ctx context.Context) string {
	if rc, ok := RequestContextFrom(ctx); ok && rc.correlationID != "" {
		return rc.correlationID
	}
	return contextutil.GetRequestID(ctx)
}
