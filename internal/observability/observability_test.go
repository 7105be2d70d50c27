package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"invoiceapi/internal/contextutil"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RequestID(t *testing.T) {
	p := &Provider{Logger: logging.NewNopLogger(), Metrics: metrics.NewCollector()}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextutil.GetRequestID(r.Context())
		assert.NotNil(t, logging.LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set(contextutil.RequestIDHeader, "client-chosen")
	rec := httptest.NewRecorder()
	p.Middleware(nil)(next).ServeHTTP(rec, req)

	require.NotEmpty(t, seen)
	assert.NotEqual(t, "client-chosen", seen)
	assert.Equal(t, seen, rec.Header().Get(contextutil.RequestIDHeader))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/v1/invoices/{invoice_id}", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet)

	assert.Equal(t, "/v1/invoices/{invoice_id}",
		routeTemplate(r, httptest.NewRequest(http.MethodGet, "/v1/invoices/abc12345", nil)))
	assert.Equal(t, unmatchedRoute,
		routeTemplate(r, httptest.NewRequest(http.MethodGet, "/nope", nil)))
	assert.Equal(t, unmatchedRoute, routeTemplate(nil, httptest.NewRequest(http.MethodGet, "/", nil)))
}
