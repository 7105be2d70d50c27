// internal/server/factory.go
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"invoiceapi/internal/admin"
	"invoiceapi/internal/api"
	"invoiceapi/internal/auth/manager"
	"invoiceapi/internal/authz"
	"invoiceapi/internal/authz/spicedb"
	"invoiceapi/internal/authz/tenant"
	"invoiceapi/internal/config"
	"invoiceapi/internal/contextutil"
	"invoiceapi/internal/invoice"
	"invoiceapi/internal/observability"
	"invoiceapi/internal/observability/logging"
	tlsconfig "invoiceapi/internal/tls"

	"github.com/go-chi/cors"
)

// NewFromConfig creates a new server from configuration. Failures to load
// credentials or signing keys are returned and must abort startup.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	// Initialize observability
	obs, err := observability.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	// Initialize TLS configuration
	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		tlsSetup := &tlsconfig.Config{
			Logger:   logger.WithModule("tls"),
			CertPath: cfg.TLS.CertPath,
			KeyPath:  cfg.TLS.KeyPath,
		}
		if tlsCfg, err = tlsSetup.GetTLSConfig(); err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	// Initialize authentication manager
	authManager, err := manager.NewManagerFromConfig(ctx, cfg, logger, obs.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authentication manager: %w", err)
	}

	// Initialize authorizer
	authorizer, err := newAuthorizer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authorizer: %w", err)
	}

	invoices := invoice.NewService(invoice.NewMemoryDocumentStore(), invoice.NewMemoryBlobStore(), logger)

	apiRouter := api.New(api.Config{
		Authenticate:    authManager.Middleware,
		Authorizer:      authorizer,
		AdminPermission: adminPermission(cfg),
		Invoices:        invoice.NewHandler(invoices, logger),
		Admin:           admin.NewHandler(admin.NewMemoryStore(), logger),
	}, logger, obs.Metrics)

	serverConfig := Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		TLSConfig:       tlsCfg,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	// Create complete middleware chain: observability -> cors -> auth -> router
	handler := obs.Middleware(apiRouter.Router)(withCORS(cfg, logger, apiRouter))

	return New(serverConfig, handler, obs.MetricsHandler(), logger, authManager.Run), nil
}

func newAuthorizer(cfg *config.Config, logger *logging.Logger) (authz.Authorizer, error) {
	switch cfg.Authz.Type {
	case config.AuthzTypeSpiceDB:
		spicedbCfg := spicedb.Config{
			Endpoint:     cfg.Authz.SpiceDB.Endpoint,
			Insecure:     cfg.Authz.SpiceDB.Insecure,
			Token:        cfg.Authz.SpiceDB.Token,
			ResourceType: cfg.Authz.SpiceDB.ResourceType,
			ResourceID:   cfg.Authz.SpiceDB.ResourceID,
			SubjectType:  cfg.Authz.SpiceDB.SubjectType,
		}
		client, err := spicedb.NewClient(spicedbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create SpiceDB client: %w", err)
		}
		logger.Info("SpiceDB authorization enabled",
			"endpoint", cfg.Authz.SpiceDB.Endpoint,
			"insecure", cfg.Authz.SpiceDB.Insecure,
		)
		return spicedb.New(spicedbCfg, client, logger), nil
	default:
		return tenant.New(cfg.Authz.AdminTenants, logger), nil
	}
}

func adminPermission(cfg *config.Config) string {
	if cfg.Authz.Type == config.AuthzTypeSpiceDB && cfg.Authz.SpiceDB.Permission != "" {
		return cfg.Authz.SpiceDB.Permission
	}
	return api.AdminPermission
}

// withCORS wraps next with the configured origin allow-list. CORS is off
// when the list is empty.
func withCORS(cfg *config.Config, logger *logging.Logger, next http.Handler) http.Handler {
	origins := cfg.Server.CORSAllowOrigins
	if len(origins) == 0 {
		return next
	}
	logger.Info("CORS enabled", "origins", logging.RedactedList(origins))

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Idempotency-Key"},
		ExposedHeaders:   []string{contextutil.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}
