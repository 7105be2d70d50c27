// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"invoiceapi/internal/auth"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Authorizer types accepted in AUTHZ_TYPE.
const (
	AuthzTypeTenant  = "tenant"
	AuthzTypeSpiceDB = "spicedb"
)

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load loads the configuration from all sources and returns the merged result
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	Settings.PopulateViperDefaults(v)

	// Variable names are used verbatim, without a prefix
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Load from config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// It's okay if the config file doesn't exist, but other errors should be reported
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Create the config object
	config := &Config{}
	var err error

	// Populate server configuration
	config.Server.Address = v.GetString("SERVER_ADDR")
	if config.Server.ShutdownTimeout, err = duration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}
	config.Server.CORSAllowOrigins = list(v, "CORS_ALLOW_ORIGINS")

	// Populate metrics configuration
	config.Metrics.Address = v.GetString("METRICS_ADDR")

	// Populate TLS configuration
	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")

	// Populate authentication configuration
	if config.Auth.Mode, err = auth.ParseMode(v.GetString("AUTH_MODE")); err != nil {
		return nil, err
	}
	config.Auth.DefaultTenant = strings.TrimSpace(v.GetString("AUTH_DEFAULT_TENANT"))

	config.Auth.APIKey.Single = v.GetString("API_KEY")
	config.Auth.APIKey.KeysJSON = v.GetString("API_KEYS_JSON")
	config.Auth.APIKey.List = v.GetString("API_KEYS")

	fed := &config.Auth.Federated
	fed.ProjectID = strings.TrimSpace(v.GetString("FIREBASE_PROJECT_ID"))
	fed.Issuers = list(v, "AUTH_TOKEN_ISSUERS")
	fed.Audience = strings.TrimSpace(v.GetString("AUTH_TOKEN_AUDIENCE"))
	fed.JWKSURL = strings.TrimSpace(v.GetString("AUTH_JWKS_URL"))
	fed.TenantClaim = strings.TrimSpace(v.GetString("AUTH_TENANT_CLAIM"))
	fed.SubjectClaim = strings.TrimSpace(v.GetString("AUTH_SUBJECT_CLAIM"))
	if raw := strings.TrimSpace(v.GetString("AUTH_TENANT_MAP_JSON")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fed.TenantMap); err != nil {
			return nil, fmt.Errorf("invalid AUTH_TENANT_MAP_JSON: %w", err)
		}
	}
	if fed.ClockSkew, err = duration(v, "AUTH_CLOCK_SKEW"); err != nil {
		return nil, err
	}
	if fed.KeyRefreshInterval, err = duration(v, "AUTH_KEY_REFRESH_INTERVAL"); err != nil {
		return nil, err
	}

	// Populate authorization configuration
	config.Authz.Type = strings.ToLower(strings.TrimSpace(v.GetString("AUTHZ_TYPE")))
	config.Authz.AdminTenants = list(v, "AUTHZ_ADMIN_TENANTS")
	config.Authz.SpiceDB.Endpoint = v.GetString("AUTHZ_SPICEDB_ENDPOINT")
	config.Authz.SpiceDB.Insecure = v.GetBool("AUTHZ_SPICEDB_INSECURE")
	config.Authz.SpiceDB.Token = v.GetString("AUTHZ_SPICEDB_TOKEN")
	config.Authz.SpiceDB.ResourceType = v.GetString("AUTHZ_SPICEDB_RESOURCE_TYPE")
	config.Authz.SpiceDB.ResourceID = v.GetString("AUTHZ_SPICEDB_RESOURCE_ID")
	config.Authz.SpiceDB.SubjectType = v.GetString("AUTHZ_SPICEDB_SUBJECT_TYPE")
	config.Authz.SpiceDB.Permission = v.GetString("AUTHZ_SPICEDB_PERMISSION")

	// Populate observability configuration
	config.Observability.LogLevel = v.GetString("LOG_LEVEL")
	config.Observability.LogFormat = v.GetString("LOG_FORMAT")

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// duration parses a duration setting
func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

// list reads a comma-separated setting. Environment values arrive as one
// string, config file values as a list; both are accepted.
func list(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case string:
		raw = []string{val}
	case []string:
		raw = val
	case []any:
		for _, item := range val {
			raw = append(raw, fmt.Sprint(item))
		}
	}

	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}

		// Check if certificate and key files exist
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	// Validate authentication configurations
	if err := validateAuthConfig(cfg); err != nil {
		return err
	}

	// Validate authorization configurations
	if err := validateAuthzConfig(cfg); err != nil {
		return err
	}

	return nil
}

// validateAuthConfig validates authentication configuration
func validateAuthConfig(cfg *Config) error {
	switch cfg.Auth.Mode {
	case auth.ModeNone:
		if !auth.ValidTenantID(cfg.Auth.DefaultTenant) {
			return fmt.Errorf("invalid AUTH_DEFAULT_TENANT %q", cfg.Auth.DefaultTenant)
		}
	case auth.ModeAPIKey:
		if cfg.Auth.APIKey.Single != "" && !auth.ValidTenantID(cfg.Auth.DefaultTenant) {
			return fmt.Errorf("invalid AUTH_DEFAULT_TENANT %q", cfg.Auth.DefaultTenant)
		}
	case auth.ModeFederated:
		if len(cfg.FederatedIssuers()) == 0 {
			return fmt.Errorf("FIREBASE_PROJECT_ID or AUTH_TOKEN_ISSUERS is required in %s mode", auth.ModeNameFederated)
		}
		if cfg.Auth.Federated.TenantClaim == "" {
			return fmt.Errorf("AUTH_TENANT_CLAIM must not be empty")
		}
		if cfg.Auth.Federated.SubjectClaim == "" {
			return fmt.Errorf("AUTH_SUBJECT_CLAIM must not be empty")
		}
		for value, tenantID := range cfg.Auth.Federated.TenantMap {
			if !auth.ValidTenantID(tenantID) {
				return fmt.Errorf("AUTH_TENANT_MAP_JSON maps %q to invalid tenant id %q", value, tenantID)
			}
		}
		if cfg.Auth.Federated.KeyRefreshInterval == 0 {
			return fmt.Errorf("AUTH_KEY_REFRESH_INTERVAL must be positive")
		}
	}

	return nil
}

// validateAuthzConfig validates authorization configuration
func validateAuthzConfig(cfg *Config) error {
	switch cfg.Authz.Type {
	case AuthzTypeTenant:
		for _, tenantID := range cfg.Authz.AdminTenants {
			if !auth.ValidTenantID(tenantID) {
				return fmt.Errorf("invalid tenant id in AUTHZ_ADMIN_TENANTS: %q", tenantID)
			}
		}
	case AuthzTypeSpiceDB:
		// SpiceDB validation
		if cfg.Authz.SpiceDB.Token == "" {
			return fmt.Errorf("SpiceDB token is required when using SpiceDB authorization")
		}
		if cfg.Authz.SpiceDB.ResourceID == "" {
			return fmt.Errorf("SpiceDB resource ID is required when using SpiceDB authorization")
		}
		if cfg.Authz.SpiceDB.Permission == "" {
			return fmt.Errorf("SpiceDB permission is required when using SpiceDB authorization")
		}
	default:
		return fmt.Errorf("unknown authorizer type %q", cfg.Authz.Type)
	}

	return nil
}
