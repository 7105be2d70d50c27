package authz

import (
	"net/http"

	"invoiceapi/internal/auth"
	"invoiceapi/internal/httputils"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"
)

// Middleware creates an HTTP middleware that requires permission on the
// authorizer's default resource.
func Middleware(a Authorizer, permission string, logger *logging.Logger, metrics *metrics.Collector) func(http.Handler) http.Handler {
	logger = logger.WithModule("authz." + a.Name())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logging.FromContextOr(ctx, logger)
			requestID := auth.CorrelationID(ctx)

			// Get the principal from the context
			principal, ok := auth.PrincipalFromContext(ctx)
			if !ok {
				log.Debug("Authorization failed: no principal in context")
				metrics.RecordAuthorization(permission, false)
				_ = httputils.WriteError(w, http.StatusUnauthorized, auth.MissingCredential.Code(),
					auth.MissingCredential.Message(), requestID, nil)
				return
			}

			response := a.Authorize(&Request{
				Principal:  principal,
				Permission: permission,
				Context:    ctx,
			})

			switch response.Decision {
			case Allow:
				metrics.RecordAuthorization(permission, true)
				log.Debug("Authorization successful", "permission", permission)
				next.ServeHTTP(w, r)
			case Deny:
				metrics.RecordAuthorization(permission, false)
				log.Info("Authorization failed: permission denied",
					"permission", permission,
					"reason", response.Reason,
				)
				_ = httputils.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Permission denied", requestID, nil)
			case Unauthorized:
				metrics.RecordAuthorization(permission, false)
				log.Info("Authorization failed: unauthorized")
				_ = httputils.WriteError(w, http.StatusUnauthorized, auth.MissingCredential.Code(),
					auth.MissingCredential.Message(), requestID, nil)
			default:
				metrics.RecordAuthorization(permission, false)
				log.Error("Authorization failed: error", logging.Err(response.Error))
				_ = httputils.WriteError(w, http.StatusServiceUnavailable, "AUTHORIZATION_UNAVAILABLE",
					"Authorization service unavailable", requestID, nil)
			}
		})
	}
}
