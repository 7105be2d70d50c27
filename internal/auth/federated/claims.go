package federated

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// lookupClaim resolves a dotted path such as "firebase.tenant" in claims.
func lookupClaim(claims jwt.MapClaims, path string) (any, bool) {
	var current any = map[string]any(claims)
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// claimString returns the trimmed string at path, or "" when the claim is
// missing or not a string.
func claimString(claims jwt.MapClaims, path string) string {
	v, ok := lookupClaim(claims, path)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
