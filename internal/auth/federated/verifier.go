// internal/auth/federated/verifier.go
package federated

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoiceapi/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/exp/slices"
)

// FirebaseIssuerPrefix is prepended to a project id to form its token issuer.
const FirebaseIssuerPrefix = "https://securetoken.google.com/"

// FirebaseIssuer returns the issuer of tokens minted for projectID.
func FirebaseIssuer(projectID string) string {
	return FirebaseIssuerPrefix + projectID
}

// signingMethods lists the accepted algorithms. Symmetric and "none" are
// never accepted.
var signingMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Config holds the verification rules.
type Config struct {
	// Issuers is the allow-list of token issuers. At least one is required.
	Issuers []string

	// Audience is the expected aud claim. If empty, audience is not checked.
	Audience string

	// TenantClaim is the claim path holding the tenant. Default: "tenant_id".
	TenantClaim string

	// SubjectClaim is the claim path holding the subject. Default: "sub".
	SubjectClaim string

	// TenantMap, when non-empty, maps tenant claim values to tenant ids.
	// Values missing from the map are rejected.
	TenantMap map[string]string

	// ClockSkew is the tolerance applied to exp, nbf and iat. Default: 5 seconds.
	ClockSkew time.Duration

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Verifier checks identity tokens against cached keys. It performs no
// network I/O.
type Verifier struct {
	cfg       Config
	keys      KeySource
	parser    *jwt.Parser
	validator *jwt.Validator
}

// NewVerifier creates a verifier that trusts keys from the given source.
func NewVerifier(cfg Config, keys KeySource) (*Verifier, error) {
	if len(cfg.Issuers) == 0 {
		return nil, errors.New("at least one token issuer is required")
	}
	if keys == nil {
		return nil, errors.New("key source is required")
	}
	cfg.applyDefaults()

	return &Verifier{
		cfg:  cfg,
		keys: keys,
		// Time claims are checked separately so the gates run in order.
		parser: jwt.NewParser(
			jwt.WithValidMethods(signingMethods),
			jwt.WithoutClaimsValidation(),
		),
		validator: jwt.NewValidator(
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}, nil
}

// Verify validates token structure, signature, issuer, audience, time
// bounds and the tenant claim, in that order. Errors wrap
// auth.ErrTokenExpired or auth.ErrTokenInvalid.
func (v *Verifier) Verify(ctx context.Context, token string) (auth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return auth.Principal{}, err
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, v.keyFunc); err != nil {
		return auth.Principal{}, invalid("parse", err)
	}

	issuer, err := claims.GetIssuer()
	if err != nil || !slices.Contains(v.cfg.Issuers, issuer) {
		return auth.Principal{}, invalid("issuer", fmt.Errorf("issuer %q not allowed", issuer))
	}

	if v.cfg.Audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, v.cfg.Audience) {
			return auth.Principal{}, invalid("audience", errors.New("audience mismatch"))
		}
	}

	if err := v.validator.Validate(claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.Principal{}, fmt.Errorf("%w: %v", auth.ErrTokenExpired, err)
		}
		return auth.Principal{}, invalid("time", err)
	}

	tenantID, err := v.tenant(claims)
	if err != nil {
		return auth.Principal{}, invalid("tenant", err)
	}

	subject := claimString(claims, v.cfg.SubjectClaim)
	if subject == "" {
		return auth.Principal{}, invalid("subject", fmt.Errorf("missing %q claim", v.cfg.SubjectClaim))
	}

	return auth.FederatedPrincipal(tenantID, subject), nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("token missing kid header")
	}
	key, ok := v.keys.Key(kid)
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (v *Verifier) tenant(claims jwt.MapClaims) (string, error) {
	value := claimString(claims, v.cfg.TenantClaim)
	if value == "" {
		return "", fmt.Errorf("missing %q claim", v.cfg.TenantClaim)
	}

	tenantID := value
	if len(v.cfg.TenantMap) > 0 {
		mapped, ok := v.cfg.TenantMap[value]
		if !ok {
			return "", errors.New("tenant claim value is not mapped")
		}
		tenantID = mapped
	}

	if !auth.ValidTenantID(tenantID) {
		return "", errors.New("tenant claim is not a valid tenant id")
	}
	return tenantID, nil
}

func invalid(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", auth.ErrTokenInvalid, stage, err)
}

var _ auth.TokenVerifier = (*Verifier)(nil)
