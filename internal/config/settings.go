// internal/config/settings.go
package config

import "github.com/spf13/viper"

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// Int type for integer settings
	Int SettingType = "int"
	// StringSlice type for string slice settings
	StringSlice SettingType = "stringSlice"
)

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
	// Env is the environment variable name for the setting
	Env string
	// Required indicates whether the setting is required
	Required bool
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// Settings defines all application settings
var Settings = SettingList{
	// Server settings
	{
		Name:    "SERVER_ADDR",
		Short:   "Address on which the server listens",
		Type:    String,
		Default: ":8000",
		Env:     "SERVER_ADDR",
	},
	{
		Name:    "METRICS_ADDR",
		Short:   "Address on which the metrics server listens",
		Type:    String,
		Default: ":9090",
		Env:     "METRICS_ADDR",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for graceful shutdown",
		Type:    String,
		Default: "30s",
		Env:     "SHUTDOWN_TIMEOUT",
	},
	{
		Name:    "CORS_ALLOW_ORIGINS",
		Short:   "Comma-separated list of allowed CORS origins",
		Type:    StringSlice,
		Default: []string{},
		Env:     "CORS_ALLOW_ORIGINS",
	},

	// TLS settings
	{
		Name:    "TLS_ENABLED",
		Short:   "Enable TLS for the server",
		Type:    Bool,
		Default: false,
		Env:     "TLS_ENABLED",
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to TLS certificate file",
		Type:    String,
		Default: "",
		Env:     "TLS_CERT_PATH",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to TLS key file",
		Type:    String,
		Default: "",
		Env:     "TLS_KEY_PATH",
	},

	// Authentication
	{
		Name:    "AUTH_MODE",
		Short:   "Authentication mode (api_key, firebase, none)",
		Type:    String,
		Default: "",
		Env:     "AUTH_MODE",
	},
	{
		Name:    "AUTH_DEFAULT_TENANT",
		Short:   "Tenant used for API_KEY and for mode none",
		Type:    String,
		Default: "default",
		Env:     "AUTH_DEFAULT_TENANT",
	},

	// Authentication: shared secrets
	{
		Name:    "API_KEY",
		Short:   "Single API key owned by the default tenant",
		Type:    String,
		Default: "",
		Env:     "API_KEY",
	},
	{
		Name:    "API_KEYS_JSON",
		Short:   "JSON object of tenant id to API key",
		Type:    String,
		Default: "",
		Env:     "API_KEYS_JSON",
	},
	{
		Name:    "API_KEYS",
		Short:   "Comma-separated API keys, each its own tenant",
		Type:    String,
		Default: "",
		Env:     "API_KEYS",
	},

	// Authentication: identity tokens
	{
		Name:    "FIREBASE_PROJECT_ID",
		Short:   "Firebase project id; derives issuer and audience",
		Type:    String,
		Default: "",
		Env:     "FIREBASE_PROJECT_ID",
	},
	{
		Name:    "AUTH_TOKEN_ISSUERS",
		Short:   "Additional allowed token issuers",
		Type:    StringSlice,
		Default: []string{},
		Env:     "AUTH_TOKEN_ISSUERS",
	},
	{
		Name:    "AUTH_TOKEN_AUDIENCE",
		Short:   "Expected token audience (defaults to the project id)",
		Type:    String,
		Default: "",
		Env:     "AUTH_TOKEN_AUDIENCE",
	},
	{
		Name:    "AUTH_JWKS_URL",
		Short:   "JWKS endpoint (discovered from the issuer when empty)",
		Type:    String,
		Default: "",
		Env:     "AUTH_JWKS_URL",
	},
	{
		Name:    "AUTH_TENANT_CLAIM",
		Short:   "Claim path holding the tenant id",
		Type:    String,
		Default: "tenant_id",
		Env:     "AUTH_TENANT_CLAIM",
	},
	{
		Name:    "AUTH_SUBJECT_CLAIM",
		Short:   "Claim path holding the subject",
		Type:    String,
		Default: "sub",
		Env:     "AUTH_SUBJECT_CLAIM",
	},
	{
		Name:    "AUTH_TENANT_MAP_JSON",
		Short:   "JSON object mapping tenant claim values to tenant ids",
		Type:    String,
		Default: "",
		Env:     "AUTH_TENANT_MAP_JSON",
	},
	{
		Name:    "AUTH_CLOCK_SKEW",
		Short:   "Clock skew tolerance for token time claims",
		Type:    String,
		Default: "5s",
		Env:     "AUTH_CLOCK_SKEW",
	},
	{
		Name:    "AUTH_KEY_REFRESH_INTERVAL",
		Short:   "Interval of the background signing key refresh",
		Type:    String,
		Default: "1h",
		Env:     "AUTH_KEY_REFRESH_INTERVAL",
	},

	// Authorization
	{
		Name:    "AUTHZ_TYPE",
		Short:   "Type of authorizer for admin routes (tenant, spicedb)",
		Type:    String,
		Default: "tenant",
		Env:     "AUTHZ_TYPE",
	},
	{
		Name:    "AUTHZ_ADMIN_TENANTS",
		Short:   "Tenants allowed on admin routes",
		Type:    StringSlice,
		Default: []string{},
		Env:     "AUTHZ_ADMIN_TENANTS",
	},
	{
		Name:    "AUTHZ_SPICEDB_ENDPOINT",
		Short:   "SpiceDB endpoint",
		Type:    String,
		Default: "localhost:50051",
		Env:     "AUTHZ_SPICEDB_ENDPOINT",
	},
	{
		Name:    "AUTHZ_SPICEDB_INSECURE",
		Short:   "Use insecure connection to SpiceDB",
		Type:    Bool,
		Default: false,
		Env:     "AUTHZ_SPICEDB_INSECURE",
	},
	{
		Name:    "AUTHZ_SPICEDB_TOKEN",
		Short:   "SpiceDB authentication token",
		Type:    String,
		Default: "",
		Env:     "AUTHZ_SPICEDB_TOKEN",
	},
	{
		Name:    "AUTHZ_SPICEDB_RESOURCE_TYPE",
		Short:   "SpiceDB resource type",
		Type:    String,
		Default: "platform",
		Env:     "AUTHZ_SPICEDB_RESOURCE_TYPE",
	},
	{
		Name:    "AUTHZ_SPICEDB_RESOURCE_ID",
		Short:   "SpiceDB resource ID",
		Type:    String,
		Default: "",
		Env:     "AUTHZ_SPICEDB_RESOURCE_ID",
	},
	{
		Name:    "AUTHZ_SPICEDB_SUBJECT_TYPE",
		Short:   "SpiceDB subject type",
		Type:    String,
		Default: "tenant",
		Env:     "AUTHZ_SPICEDB_SUBJECT_TYPE",
	},
	{
		Name:    "AUTHZ_SPICEDB_PERMISSION",
		Short:   "SpiceDB permission required on admin routes",
		Type:    String,
		Default: "admin",
		Env:     "AUTHZ_SPICEDB_PERMISSION",
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
		Env:     "LOG_LEVEL",
	},
	{
		Name:    "LOG_FORMAT",
		Short:   "Logging format (json, text, console)",
		Type:    String,
		Default: "json",
		Env:     "LOG_FORMAT",
	},
}
