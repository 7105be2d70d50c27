package federated

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DiscoverJWKSURL reads the jwks_uri from the issuer's OpenID configuration.
// It is called once at startup, never per request.
func DiscoverJWKSURL(ctx context.Context, issuer string, client *http.Client) (string, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("discovering provider metadata for %s: %w", issuer, err)
	}

	var metadata struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return "", fmt.Errorf("decoding provider metadata: %w", err)
	}
	if metadata.JWKSURL == "" {
		return "", errors.New("provider metadata has no jwks_uri")
	}
	return metadata.JWKSURL, nil
}
