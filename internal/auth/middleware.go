// internal/auth/middleware.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"invoiceapi/internal/contextutil"
	"invoiceapi/internal/httputils"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"
)

// CredentialHeader is the only carrier credential material is read from.
const CredentialHeader = "Authorization"

const bearerScheme = "Bearer"

// Outcome label recorded for successful resolutions.
const outcomeResolved = "resolved"

// ExtractCredential returns the bearer credential of r. It accepts exactly
// one Authorization header of the form "Bearer <credential>" where the
// credential contains no whitespace; anything else yields "".
func ExtractCredential(r *http.Request) string {
	values := r.Header.Values(CredentialHeader)
	if len(values) != 1 {
		return ""
	}

	scheme, credential, ok := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	credential = strings.TrimSpace(credential)
	if credential == "" || strings.ContainsAny(credential, " \t\r\n") {
		return ""
	}
	return credential
}

// Middleware adapts a Resolver to net/http.
type Middleware struct {
	resolver *Resolver
	logger   *logging.Logger
	metrics  *metrics.Collector
}

// NewMiddleware creates the authentication middleware
func NewMiddleware(resolver *Resolver, logger *logging.Logger, metrics *metrics.Collector) *Middleware {
	return &Middleware{
		resolver: resolver,
		logger:   logger.WithModule("auth.middleware"),
		metrics:  metrics,
	}
}

// Handler resolves every request before next runs. On success the
// RequestContext is attached to the request context; on failure the request
// is answered with the rejection and next is never called.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, correlationID := contextutil.EnsureRequestID(r.Context())
		logger := logging.FromContextOr(ctx, m.logger)
		mode := m.resolver.Mode().String()

		credential := ExtractCredential(r)
		principal, err := m.resolver.Resolve(ctx, credential)
		if err != nil {
			var rej *Rejection
			if errors.As(err, &rej) {
				m.metrics.RecordAuthentication(mode, rej.Reason.Code())
				attrs := []any{"reason", rej.Reason.Code(), "mode", mode, logging.Err(err)}
				if credential != "" {
					attrs = append(attrs, "credential_fp", logging.Fingerprint(credential))
				}
				logger.Warn("Request rejected", attrs...)
				m.writeRejection(w, logger, rej.Reason, correlationID)
				return
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Debug("Request cancelled during authentication", logging.Err(err))
				m.writeError(w, logger, http.StatusServiceUnavailable,
					"REQUEST_CANCELLED", "Request cancelled", correlationID)
				return
			}

			logger.Error("Unexpected authentication error", logging.Err(err))
			m.writeRejection(w, logger, ModeMisconfigured, correlationID)
			return
		}

		m.metrics.RecordAuthentication(mode, outcomeResolved)
		logger.Debug("Request authenticated",
			"tenant_id", principal.TenantID(),
			"mode", mode,
		)

		rc := NewRequestContext(principal, correlationID)
		ctx = ContextWithRequestContext(ctx, rc)
		ctx = logging.ContextWithLogger(ctx, logger.With("tenant_id", principal.TenantID()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) writeRejection(w http.ResponseWriter, logger *logging.Logger, reason Reason, correlationID string) {
	if reason.HTTPStatus() == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", bearerScheme)
	}
	m.writeError(w, logger, reason.HTTPStatus(), reason.Code(), reason.Message(), correlationID)
}

// writeError answers with the error envelope. A failed write is logged, the
// response is already committed by then.
func (m *Middleware) writeError(w http.ResponseWriter, logger *logging.Logger, status int, code, message, correlationID string) {
	if err := httputils.WriteError(w, status, code, message, correlationID, nil); err != nil {
		logger.Error("Failed to write error response", "code", code, logging.Err(err))
	}
}
