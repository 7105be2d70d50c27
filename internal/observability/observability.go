// internal/observability/observability.go
package observability

import (
	"net/http"
	"time"

	"invoiceapi/internal/config"
	"invoiceapi/internal/contextutil"
	"invoiceapi/internal/httputils"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"

	"github.com/gorilla/mux"
)

// Path label for requests that match no route
const unmatchedRoute = "unmatched"

// Provider provides observability capabilities
type Provider struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// NewProvider creates a new observability provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	// Create logger
	logger, err := logging.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	}, nil
}

// Middleware creates an HTTP middleware for request observation. Every
// request gets a fresh correlation id, echoed in the X-Request-Id response
// header. Metrics are labelled with the route template matched in routes so
// ids in paths do not create new series.
func (p *Provider) Middleware(routes *mux.Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			// Inbound X-Request-Id values are never trusted
			requestID := contextutil.NewRequestID()
			ctx := contextutil.WithRequestID(r.Context(), requestID)

			// Attach logger to context
			logger := p.Logger.WithRequestID(requestID)
			ctx = logging.ContextWithLogger(ctx, logger)

			// Create a response wrapper to capture the status code
			wrapper := httputils.NewResponseWriter(w)
			wrapper.Header().Set(contextutil.RequestIDHeader, requestID)

			route := routeTemplate(routes, r)

			logger.Debug("Request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			next.ServeHTTP(wrapper, r.WithContext(ctx))

			duration := time.Since(startTime)
			p.Metrics.RecordRequest(r.Method, route, wrapper.StatusCode, duration)

			logger.Info("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapper.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"bytes_written", wrapper.BytesWritten,
			)
		})
	}
}

// MetricsHandler returns an HTTP handler for exposing metrics
func (p *Provider) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func routeTemplate(routes *mux.Router, r *http.Request) string {
	if routes == nil {
		return unmatchedRoute
	}
	var match mux.RouteMatch
	if !routes.Match(r, &match) || match.Route == nil {
		return unmatchedRoute
	}
	tpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return unmatchedRoute
	}
	return tpl
}
