// internal/auth/types.go
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Mode is the authentication mode, fixed for the process lifetime.
//
// The set is closed. Resolver.Resolve switches over every value and rejects
// anything else with ModeMisconfigured, so a new mode has to be added here
// and handled there.
type Mode int

const (
	// ModeUnset is the zero value. A resolver built with it fails closed.
	ModeUnset Mode = iota
	// ModeAPIKey resolves shared secrets through a credential store.
	ModeAPIKey
	// ModeFederated resolves identity tokens issued by an external provider.
	ModeFederated
	// ModeNone resolves every request to the anonymous principal.
	ModeNone
)

// Configuration names of the modes, as accepted in AUTH_MODE.
const (
	ModeNameAPIKey    = "api_key"
	ModeNameFederated = "firebase"
	ModeNameNone      = "none"
)

// ErrInvalidMode is returned when AUTH_MODE names no known mode.
var ErrInvalidMode = errors.New("invalid auth mode")

// ParseMode parses a configured mode name. The empty string yields ModeUnset
// without error; callers decide whether that is fatal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ModeUnset, nil
	case ModeNameAPIKey:
		return ModeAPIKey, nil
	case ModeNameFederated:
		return ModeFederated, nil
	case ModeNameNone:
		return ModeNone, nil
	default:
		return ModeUnset, fmt.Errorf("%w: %q (want %s, %s or %s)", ErrInvalidMode, s,
			ModeNameAPIKey, ModeNameFederated, ModeNameNone)
	}
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAPIKey:
		return ModeNameAPIKey
	case ModeFederated:
		return ModeNameFederated
	case ModeNone:
		return ModeNameNone
	default:
		return "unset"
	}
}

// Principal is the identity a request resolved to. Fields are unexported so a
// Principal cannot be altered after construction; it is passed by value.
type Principal struct {
	tenantID string
	mode     Mode
	subject  string
}

// APIKeyPrincipal is the principal of a matched shared secret.
func APIKeyPrincipal(tenantID string) Principal {
	return Principal{tenantID: tenantID, mode: ModeAPIKey}
}

// FederatedPrincipal is the principal of a verified identity token.
func FederatedPrincipal(tenantID, subject string) Principal {
	return Principal{tenantID: tenantID, mode: ModeFederated, subject: subject}
}

// AnonymousPrincipal is the fixed principal of ModeNone.
func AnonymousPrincipal(tenantID string) Principal {
	return Principal{tenantID: tenantID, mode: ModeNone}
}

// TenantID returns the tenant the principal acts for.
func (p Principal) TenantID() string { return p.tenantID }

// Mode returns the mode that produced the principal.
func (p Principal) Mode() Mode { return p.mode }

// Subject returns the verified external identity. Only federated principals
// carry one; ok is false otherwise.
func (p Principal) Subject() (subject string, ok bool) {
	return p.subject, p.subject != ""
}

// IsZero reports whether p is the zero Principal.
func (p Principal) IsZero() bool { return p == Principal{} }

// tenantIDPattern bounds tenant ids wherever they come from.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// ValidTenantID reports whether s is an acceptable tenant id.
func ValidTenantID(s string) bool {
	return tenantIDPattern.MatchString(s)
}

// Reason is why a request was rejected.
type Reason int

const (
	// MissingCredential covers both absent and malformed credential carriers.
	MissingCredential Reason = iota + 1
	// UnknownCredential is a well-formed secret that matches no tenant.
	UnknownCredential
	// InvalidToken is a token that failed structure, signature, issuer or claim checks.
	InvalidToken
	// ExpiredToken is a token past its expiry, beyond the skew tolerance.
	ExpiredToken
	// ModeMisconfigured is returned for every request when no valid mode is configured.
	ModeMisconfigured
)

// Code returns the machine-readable reason code sent to clients.
func (r Reason) Code() string {
	switch r {
	case MissingCredential:
		return "MISSING_CREDENTIAL"
	case UnknownCredential:
		return "UNKNOWN_CREDENTIAL"
	case InvalidToken:
		return "INVALID_TOKEN"
	case ExpiredToken:
		return "EXPIRED_TOKEN"
	case ModeMisconfigured:
		return "MODE_MISCONFIGURED"
	default:
		return "UNKNOWN"
	}
}

// Message returns a fixed, client-safe description of the reason.
func (r Reason) Message() string {
	switch r {
	case MissingCredential:
		return "Missing or malformed credential"
	case UnknownCredential:
		return "Credential not recognized"
	case InvalidToken:
		return "Invalid token"
	case ExpiredToken:
		return "Token expired"
	case ModeMisconfigured:
		return "Authentication is not configured"
	default:
		return "Authentication failed"
	}
}

// HTTPStatus maps the reason to a response status.
func (r Reason) HTTPStatus() int {
	if r == ModeMisconfigured {
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

// String implements fmt.Stringer
func (r Reason) String() string { return r.Code() }

// Rejection is the error returned by Resolve for every refused request. The
// cause is kept for server-side logs and never rendered to clients.
type Rejection struct {
	Reason Reason
	cause  error
}

func (e *Rejection) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("rejected (%s): %v", e.Reason.Code(), e.cause)
	}
	return fmt.Sprintf("rejected (%s)", e.Reason.Code())
}

func (e *Rejection) Unwrap() error { return e.cause }

func reject(reason Reason, cause error) *Rejection {
	return &Rejection{Reason: reason, cause: cause}
}

// Token verification errors. Verifiers wrap one of these so the resolver can
// pick the reason without importing the verifier.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)
