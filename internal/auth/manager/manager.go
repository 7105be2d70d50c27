// internal/auth/manager/manager.go
package manager

import (
	"context"
	"fmt"
	"net/http"

	"invoiceapi/internal/auth"
	"invoiceapi/internal/auth/apikey"
	"invoiceapi/internal/auth/federated"
	"invoiceapi/internal/config"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"
)

// Manager owns the resolver for the configured mode and any background
// work it needs.
type Manager struct {
	logger     *logging.Logger
	resolver   *auth.Resolver
	middleware *auth.Middleware
	keys       *federated.RemoteKeySet
}

// NewManager creates a new authentication manager
func NewManager(resolver *auth.Resolver, keys *federated.RemoteKeySet, logger *logging.Logger, metrics *metrics.Collector) *Manager {
	return &Manager{
		logger:     logger.WithModule("auth.manager"),
		resolver:   resolver,
		middleware: auth.NewMiddleware(resolver, logger, metrics),
		keys:       keys,
	}
}

// Middleware authenticates every request before next runs
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return m.middleware.Handler(next)
}

// Mode returns the configured authentication mode
func (m *Manager) Mode() auth.Mode {
	return m.resolver.Mode()
}

// Run performs background key refreshes until ctx is done. It returns
// immediately when the mode needs none.
func (m *Manager) Run(ctx context.Context) {
	if m.keys == nil {
		return
	}
	m.logger.Debug("Starting signing key refresher")
	m.keys.Run(ctx)
}

// NewManagerFromConfig builds the resolver for the configured mode. Credential
// and key loading failures are returned and must abort startup.
func NewManagerFromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *metrics.Collector) (*Manager, error) {
	logger = logger.WithModule("auth.factory")

	resolverCfg := auth.Config{
		Mode:          cfg.Auth.Mode,
		DefaultTenant: cfg.Auth.DefaultTenant,
	}
	var keys *federated.RemoteKeySet

	switch cfg.Auth.Mode {
	case auth.ModeUnset:
		logger.Warn("AUTH_MODE is not set, every request will be rejected")

	case auth.ModeNone:
		logger.Warn("Authentication disabled, all requests act as the default tenant",
			"tenant_id", cfg.Auth.DefaultTenant)

	case auth.ModeAPIKey:
		store, err := apikey.Load(apikey.Config{
			Single:        cfg.Auth.APIKey.Single,
			KeysJSON:      cfg.Auth.APIKey.KeysJSON,
			List:          cfg.Auth.APIKey.List,
			DefaultTenant: cfg.Auth.DefaultTenant,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load api keys: %w", err)
		}
		resolverCfg.Credentials = store
		logger.Info("API key authentication enabled",
			"tenants", store.Tenants(),
			"keys", store.Len(),
		)

	case auth.ModeFederated:
		verifier, ks, err := newFederated(ctx, cfg, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token verification: %w", err)
		}
		resolverCfg.Verifier = verifier
		keys = ks
		logger.Info("Identity token authentication enabled",
			"issuers", cfg.FederatedIssuers(),
			"tenant_claim", cfg.Auth.Federated.TenantClaim,
			"keys", ks.Len(),
		)
	}

	resolver := auth.NewResolver(resolverCfg)
	if err := resolver.Misconfigured(); err != nil {
		logger.Error("Authentication is misconfigured and fails closed", logging.Err(err))
	}

	return NewManager(resolver, keys, logger, metrics), nil
}

func newFederated(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *metrics.Collector) (*federated.Verifier, *federated.RemoteKeySet, error) {
	issuers := cfg.FederatedIssuers()

	jwksURL := cfg.Auth.Federated.JWKSURL
	if jwksURL == "" {
		var err error
		logger.Debug("Discovering JWKS endpoint", "issuer", issuers[0])
		if jwksURL, err = federated.DiscoverJWKSURL(ctx, issuers[0], nil); err != nil {
			return nil, nil, err
		}
	}

	keys, err := federated.NewRemoteKeySet(federated.KeySetConfig{
		URL:             jwksURL,
		RefreshInterval: cfg.Auth.Federated.KeyRefreshInterval,
	}, logger, metrics)
	if err != nil {
		return nil, nil, err
	}
	if err := keys.Refresh(ctx); err != nil {
		return nil, nil, fmt.Errorf("initial signing key fetch: %w", err)
	}

	verifier, err := federated.NewVerifier(federated.Config{
		Issuers:      issuers,
		Audience:     cfg.FederatedAudience(),
		TenantClaim:  cfg.Auth.Federated.TenantClaim,
		SubjectClaim: cfg.Auth.Federated.SubjectClaim,
		TenantMap:    cfg.Auth.Federated.TenantMap,
		ClockSkew:    cfg.Auth.Federated.ClockSkew,
	}, keys)
	if err != nil {
		return nil, nil, err
	}
	return verifier, keys, nil
}
