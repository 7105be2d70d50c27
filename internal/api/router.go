// internal/api/router.go
package api

import (
	"net/http"

	"invoiceapi/internal/admin"
	"invoiceapi/internal/authz"
	"invoiceapi/internal/contextutil"
	"invoiceapi/internal/httputils"
	"invoiceapi/internal/invoice"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"

	"github.com/gorilla/mux"
)

// Version prefix of every authenticated route
const apiPrefix = "/v1"

// AdminPermission is the default permission checked on admin routes
const AdminPermission = "admin"

// Config holds router configuration
type Config struct {
	// Banner is returned by GET /
	Banner string

	// Authenticate runs before every /v1 route
	Authenticate mux.MiddlewareFunc

	// Authorizer guards the admin routes
	Authorizer authz.Authorizer

	// AdminPermission is checked on admin routes; defaults to AdminPermission
	AdminPermission string

	Invoices *invoice.Handler
	Admin    *admin.Handler
}

// Router serves the public health routes and the authenticated API
type Router struct {
	*mux.Router
	logger  *logging.Logger
	metrics *metrics.Collector
}

// New creates a new router
func New(config Config, logger *logging.Logger, metricsCollector *metrics.Collector) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		logger:  logger.WithModule("api.router"),
		metrics: metricsCollector,
	}
	r.setupRoutes(config)
	return r
}

func (r *Router) setupRoutes(config Config) {
	banner := config.Banner
	if banner == "" {
		banner = "Invoice API backend running"
	}

	r.Path("/").Methods(http.MethodGet).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = httputils.WriteJSON(w, http.StatusOK, map[string]string{"message": banner})
	})
	r.Path("/health").Methods(http.MethodGet).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = httputils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := r.PathPrefix(apiPrefix).Subrouter()
	if config.Authenticate != nil {
		v1.Use(config.Authenticate)
	} else {
		r.logger.Warn("No authentication middleware configured for API routes")
	}

	if config.Invoices != nil {
		config.Invoices.Register(v1.PathPrefix("/invoices").Subrouter())
	}

	if config.Admin != nil {
		adminRouter := v1.PathPrefix("/admin").Subrouter()
		if config.Authorizer == nil {
			// Admin routes are never served without an authorizer
			r.logger.Warn("No authorizer configured, admin routes are disabled")
			adminRouter.PathPrefix("/").Handler(r.forbidden())
		} else {
			permission := config.AdminPermission
			if permission == "" {
				permission = AdminPermission
			}
			adminRouter.Use(authz.Middleware(config.Authorizer, permission, r.logger, r.metrics))
			config.Admin.Register(adminRouter)
		}
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logging.FromContextOr(req.Context(), r.logger).Debug("Request received for undefined route", "path", req.URL.Path)
		_ = httputils.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Not found",
			contextutil.GetRequestID(req.Context()), nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = httputils.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed",
			contextutil.GetRequestID(req.Context()), nil)
	})
}

func (r *Router) forbidden() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = httputils.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Permission denied",
			contextutil.GetRequestID(req.Context()), nil)
	})
}
