// internal/config/types.go
package config

import (
	"time"

	"invoiceapi/internal/auth"
	"invoiceapi/internal/auth/federated"

	"golang.org/x/exp/slices"
)

// Config represents the complete application configuration. It is built
// once by Load and never modified afterwards.
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
		// CORSAllowOrigins is the CORS origin allow-list; empty disables CORS
		CORSAllowOrigins []string
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration
	TLS struct {
		// Enabled indicates whether TLS is enabled
		Enabled bool
		// CertPath is the path to the TLS certificate
		CertPath string
		// KeyPath is the path to the TLS key
		KeyPath string
	}

	// Auth holds authentication configuration
	Auth struct {
		// Mode is the authentication mode. ModeUnset makes every request fail
		// with a misconfiguration rejection.
		Mode auth.Mode
		// DefaultTenant owns API_KEY and the anonymous principal
		DefaultTenant string

		// APIKey holds the shared secret shapes. At most one may be set.
		APIKey struct {
			// Single is API_KEY
			Single string
			// KeysJSON is API_KEYS_JSON
			KeysJSON string
			// List is API_KEYS
			List string
		}

		// Federated holds identity token verification configuration
		Federated struct {
			// ProjectID is the Firebase project; it derives an issuer and the audience
			ProjectID string
			// Issuers are additional allow-listed issuers
			Issuers []string
			// Audience is the expected aud claim
			Audience string
			// JWKSURL is the key set endpoint; discovered from the first issuer when empty
			JWKSURL string
			// TenantClaim is the claim path holding the tenant
			TenantClaim string
			// SubjectClaim is the claim path holding the subject
			SubjectClaim string
			// TenantMap maps tenant claim values to tenant ids
			TenantMap map[string]string
			// ClockSkew is the tolerance for time claims
			ClockSkew time.Duration
			// KeyRefreshInterval is the period of the background key refresh
			KeyRefreshInterval time.Duration
		}
	}

	// Authz holds authorization configuration
	Authz struct {
		// Type is the type of authorizer to use (tenant, spicedb)
		Type string

		// AdminTenants are the tenants allowed on admin routes (tenant authorizer)
		AdminTenants []string

		// SpiceDB holds SpiceDB configuration
		SpiceDB struct {
			// Endpoint is the SpiceDB endpoint
			Endpoint string
			// Insecure indicates whether to use an insecure connection
			Insecure bool
			// Token is the SpiceDB authentication token
			Token string
			// ResourceType is the SpiceDB resource type
			ResourceType string
			// ResourceID is the SpiceDB resource ID
			ResourceID string
			// SubjectType is the SpiceDB subject type
			SubjectType string
			// Permission is checked for admin routes
			Permission string
		}
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
		// LogFormat is the log format (json, text, console)
		LogFormat string
	}
}

// FederatedIssuers returns the full issuer allow-list, including the one
// derived from the project id.
func (c *Config) FederatedIssuers() []string {
	var issuers []string
	if c.Auth.Federated.ProjectID != "" {
		issuers = append(issuers, federated.FirebaseIssuer(c.Auth.Federated.ProjectID))
	}
	for _, iss := range c.Auth.Federated.Issuers {
		if !slices.Contains(issuers, iss) {
			issuers = append(issuers, iss)
		}
	}
	return issuers
}

// FederatedAudience returns the expected audience, defaulting to the project id.
func (c *Config) FederatedAudience() string {
	if c.Auth.Federated.Audience != "" {
		return c.Auth.Federated.Audience
	}
	return c.Auth.Federated.ProjectID
}
