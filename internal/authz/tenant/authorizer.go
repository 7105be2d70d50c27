// Package tenant authorizes principals by membership of their tenant in a
// fixed allow-list.
package tenant

import (
	"invoiceapi/internal/authz"
	"invoiceapi/internal/observability/logging"
)

// Authorizer grants every permission to a fixed set of tenants and denies
// everyone else. An empty set denies all principals.
type Authorizer struct {
	allowed map[string]struct{}
	logger  *logging.Logger
}

// New creates a tenant allow-list authorizer
func New(tenants []string, logger *logging.Logger) *Authorizer {
	allowed := make(map[string]struct{}, len(tenants))
	for _, t := range tenants {
		allowed[t] = struct{}{}
	}
	return &Authorizer{
		allowed: allowed,
		logger:  logger.WithModule("authz.tenant"),
	}
}

// Name implements authz.Authorizer
func (a *Authorizer) Name() string { return "tenant" }

// Authorize implements authz.Authorizer
func (a *Authorizer) Authorize(req *authz.Request) *authz.Response {
	if req.Principal.IsZero() {
		return &authz.Response{Decision: authz.Unauthorized, Reason: "No principal provided"}
	}
	if _, ok := a.allowed[req.Principal.TenantID()]; !ok {
		a.logger.Debug("Tenant not in allow-list",
			"tenant_id", req.Principal.TenantID(),
			"permission", req.Permission,
		)
		return &authz.Response{Decision: authz.Deny, Reason: "Tenant not allowed"}
	}
	return &authz.Response{Decision: authz.Allow, Reason: "Tenant allowed"}
}

var _ authz.Authorizer = (*Authorizer)(nil)
