// internal/auth/resolver.go
package auth

import (
	"context"
	"errors"
	"fmt"
)

// CredentialLookup maps a presented shared secret to its tenant.
type CredentialLookup interface {
	Lookup(secret string) (tenantID string, ok bool)
}

// TokenVerifier verifies an identity token and returns its principal.
// Failures should wrap ErrTokenExpired or ErrTokenInvalid; anything else is
// treated as an invalid token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// Config is the immutable input of a Resolver.
type Config struct {
	Mode Mode

	// DefaultTenant is the tenant of the anonymous principal in ModeNone.
	DefaultTenant string

	// Credentials is required in ModeAPIKey.
	Credentials CredentialLookup

	// Verifier is required in ModeFederated.
	Verifier TokenVerifier
}

// Resolver turns a request's credential material into a Principal or a
// Rejection. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	mode          Mode
	anonymous     Principal
	credentials   CredentialLookup
	verifier      TokenVerifier
	misconfigured error
}

// NewResolver builds a resolver. It never fails: a configuration that cannot
// serve its mode produces a resolver that rejects every request with
// ModeMisconfigured. Misconfigured reports why.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		mode:        cfg.Mode,
		credentials: cfg.Credentials,
		verifier:    cfg.Verifier,
	}

	switch cfg.Mode {
	case ModeUnset:
		r.misconfigured = errors.New("no auth mode configured")
	case ModeAPIKey:
		if cfg.Credentials == nil {
			r.misconfigured = errors.New("api_key mode without a credential store")
		}
	case ModeFederated:
		if cfg.Verifier == nil {
			r.misconfigured = errors.New("firebase mode without a token verifier")
		}
	case ModeNone:
		if !ValidTenantID(cfg.DefaultTenant) {
			r.misconfigured = fmt.Errorf("invalid default tenant %q", cfg.DefaultTenant)
		}
		r.anonymous = AnonymousPrincipal(cfg.DefaultTenant)
	default:
		r.misconfigured = fmt.Errorf("%w: %d", ErrInvalidMode, int(cfg.Mode))
	}

	return r
}

// Mode returns the configured mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Misconfigured returns the reason the resolver fails closed, or nil.
func (r *Resolver) Misconfigured() error { return r.misconfigured }

// Resolve resolves one request. credential is the material extracted from the
// single recognized carrier; the empty string means absent or malformed.
//
// Refusals are returned as *Rejection. If ctx is done before a principal is
// produced, ctx.Err() is returned and no principal is produced.
func (r *Resolver) Resolve(ctx context.Context, credential string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	if r.misconfigured != nil {
		return Principal{}, reject(ModeMisconfigured, r.misconfigured)
	}

	var (
		principal Principal
		err       error
	)

	switch r.mode {
	case ModeNone:
		// Credential material is never inspected.
		principal = r.anonymous
	case ModeAPIKey:
		principal, err = r.resolveAPIKey(credential)
	case ModeFederated:
		principal, err = r.resolveToken(ctx, credential)
	default:
		err = reject(ModeMisconfigured, fmt.Errorf("%w: %d", ErrInvalidMode, int(r.mode)))
	}
	if err != nil {
		return Principal{}, err
	}

	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	return principal, nil
}

func (r *Resolver) resolveAPIKey(secret string) (Principal, error) {
	if secret == "" {
		return Principal{}, reject(MissingCredential, nil)
	}
	tenantID, ok := r.credentials.Lookup(secret)
	if !ok {
		return Principal{}, reject(UnknownCredential, nil)
	}
	return APIKeyPrincipal(tenantID), nil
}

func (r *Resolver) resolveToken(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, reject(MissingCredential, nil)
	}

	principal, err := r.verifier.Verify(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Principal{}, err
	case errors.Is(err, ErrTokenExpired):
		return Principal{}, reject(ExpiredToken, err)
	default:
		return Principal{}, reject(InvalidToken, err)
	}

	if principal.mode != ModeFederated || !ValidTenantID(principal.tenantID) {
		return Principal{}, reject(InvalidToken, fmt.Errorf("verifier returned unusable principal for tenant %q", principal.tenantID))
	}
	return principal, nil
}

// ReasonOf returns the rejection reason carried by err.
func ReasonOf(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return 0, false
}
