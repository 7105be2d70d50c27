// internal/authz/types.go
package authz

import (
	"context"

	"invoiceapi/internal/auth"
)

// Decision represents an authorization decision
type Decision int

const (
	// Allow indicates the request is allowed
	Allow Decision = iota
	// Deny indicates the request is denied
	Deny
	// Unauthorized indicates the request is unauthorized (no principal)
	Unauthorized
	// Error indicates an error occurred during authorization
	Error
)

// String implements fmt.Stringer
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Unauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

// Request represents an authorization request
type Request struct {
	// Principal is the authenticated principal to authorize
	Principal auth.Principal

	// Resource is the resource being accessed; empty means the authorizer default
	Resource string

	// Permission is the permission being checked
	Permission string

	// Context is the request context
	Context context.Context
}

// Response represents an authorization response
type Response struct {
	// Decision is the authorization decision
	Decision Decision

	// Reason provides additional information about the decision
	Reason string

	// Error is set if an error occurred during authorization
	Error error
}

// Authorizer decides whether an authenticated principal may perform an
// operation. It runs only after authentication succeeded.
type Authorizer interface {
	// Authorize checks if the principal has the specified permission on the resource
	Authorize(req *Request) *Response

	// Name identifies the authorizer in logs
	Name() string
}
