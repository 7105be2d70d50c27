package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"invoiceapi/internal/contextutil"
	"invoiceapi/internal/httputils"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    string
	}{
		{"absent", nil, ""},
		{"bearer", []string{"Bearer K1"}, "K1"},
		{"case insensitive scheme", []string{"bearer K1"}, "K1"},
		{"padded", []string{"  Bearer   K1  "}, "K1"},
		{"basic scheme", []string{"Basic dXNlcjpwYXNz"}, ""},
		{"scheme only", []string{"Bearer"}, ""},
		{"empty credential", []string{"Bearer   "}, ""},
		{"embedded space", []string{"Bearer K1 K2"}, ""},
		{"repeated header", []string{"Bearer K1", "Bearer K2"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
			for _, h := range tt.headers {
				r.Header.Add(CredentialHeader, h)
			}
			assert.Equal(t, tt.want, ExtractCredential(r))
		})
	}
}

func TestExtractCredential_IgnoresOtherCarriers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/invoices?api_key=K1", nil)
	r.Header.Set("X-API-Key", "K1")
	r.Header.Set("X-Tenant-Id", "acme")
	assert.Empty(t, ExtractCredential(r))
}

func newTestMiddleware(cfg Config) *Middleware {
	return NewMiddleware(NewResolver(cfg), logging.NewNopLogger(), metrics.NewCollector())
}

type capture struct {
	called bool
	rc     RequestContext
}

func (c *capture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.rc, _ = RequestContextFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputils.ErrorBody {
	t.Helper()
	var body httputils.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMiddleware_Resolved(t *testing.T) {
	mw := newTestMiddleware(Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}})
	var c capture

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer K1")
	req = req.WithContext(contextutil.WithRequestID(req.Context(), "req-123"))
	rec := httptest.NewRecorder()
	mw.Handler(c.handler()).ServeHTTP(rec, req)

	require.True(t, c.called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "demo", c.rc.TenantID())
	assert.Equal(t, ModeAPIKey, c.rc.Principal().Mode())
	assert.Equal(t, "req-123", c.rc.CorrelationID())
}

func TestMiddleware_DistinctCorrelationIDs(t *testing.T) {
	mw := newTestMiddleware(Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}})

	var seen []RequestContext
	for range 2 {
		var c capture
		req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
		req.Header.Set("Authorization", "Bearer K1")
		mw.Handler(c.handler()).ServeHTTP(httptest.NewRecorder(), req)
		require.True(t, c.called)
		seen = append(seen, c.rc)
	}

	assert.Equal(t, seen[0].Principal(), seen[1].Principal())
	assert.NotEmpty(t, seen[0].CorrelationID())
	assert.NotEqual(t, seen[0].CorrelationID(), seen[1].CorrelationID())
}

func TestMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing", Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}}, "", 401, "MISSING_CREDENTIAL"},
		{"malformed", Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}}, "Token K1", 401, "MISSING_CREDENTIAL"},
		{"unknown", Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}}, "Bearer K3", 401, "UNKNOWN_CREDENTIAL"},
		{"federated malformed", Config{Mode: ModeFederated, Verifier: verifierFunc(func(context.Context, string) (Principal, error) {
			return Principal{}, ErrTokenInvalid
		})}, "Bearer", 401, "MISSING_CREDENTIAL"},
		{"misconfigured", Config{}, "Bearer K1", 500, "MODE_MISCONFIGURED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := newTestMiddleware(tt.cfg)
			var c capture

			req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req = req.WithContext(contextutil.WithRequestID(req.Context(), "req-9"))
			rec := httptest.NewRecorder()
			mw.Handler(c.handler()).ServeHTTP(rec, req)

			assert.False(t, c.called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, "req-9", body.Error.RequestID)
			assert.NotContains(t, rec.Body.String(), "K1")
			if tt.wantStatus == 401 {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestMiddleware_CancelledRequestSkipsHandler(t *testing.T) {
	mw := newTestMiddleware(Config{Mode: ModeNone, DefaultTenant: "default"})
	var c capture

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	mw.Handler(c.handler()).ServeHTTP(rec, req)

	assert.False(t, c.called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "REQUEST_CANCELLED", decodeError(t, rec).Error.Code)
}

func TestMiddleware_ModeNoneAnyHeaders(t *testing.T) {
	mw := newTestMiddleware(Config{Mode: ModeNone, DefaultTenant: "default"})

	for _, header := range []string{"", "Bearer whatever", "garbage"} {
		var c capture
		req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		req.Header.Set("X-Tenant-Id", "acme")
		mw.Handler(c.handler()).ServeHTTP(httptest.NewRecorder(), req)

		require.True(t, c.called)
		assert.Equal(t, AnonymousPrincipal("default"), c.rc.Principal())
	}
}

func TestPrincipalFromContext_Absent(t *testing.T) {
	_, ok := PrincipalFromContext(t.Context())
	assert.False(t, ok)
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, CorrelationID(t.Context()))

	ctx := contextutil.WithRequestID(t.Context(), "req-7")
	assert.Equal(t, "req-7", CorrelationID(ctx))

	ctx = ContextWithRequestContext(ctx, NewRequestContext(APIKeyPrincipal("demo"), "corr-1"))
	assert.Equal(t, "corr-1", CorrelationID(ctx))
}

func newBufferedMiddleware(cfg Config, buf *bytes.Buffer) *Middleware {
	logger := &logging.Logger{Logger: slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	return NewMiddleware(NewResolver(cfg), logger, metrics.NewCollector())
}

func TestMiddleware_RejectionLogsFingerprint(t *testing.T) {
	var buf bytes.Buffer
	mw := newBufferedMiddleware(Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}}, &buf)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret-value")
	mw.Handler(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "UNKNOWN_CREDENTIAL", line["reason"])
	assert.Equal(t, logging.Fingerprint("wrong-secret-value").LogValue().String(), line["credential_fp"])
	assert.NotContains(t, buf.String(), "wrong-secret-value")
}

func TestMiddleware_MissingCredentialLogsNoFingerprint(t *testing.T) {
	var buf bytes.Buffer
	mw := newBufferedMiddleware(Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}}, &buf)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	mw.Handler(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "credential_fp")
}

type brokenWriter struct {
	header http.Header
	status int
}

func (b *brokenWriter) Header() http.Header {
	if b.header == nil {
		b.header = http.Header{}
	}
	return b.header
}

func (b *brokenWriter) WriteHeader(status int) { b.status = status }

func (b *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestMiddleware_FailedWritesAreLogged(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		cancel     bool
		wantStatus int
		wantCode   string
	}{
		{"rejection", Config{Mode: ModeAPIKey, Credentials: mapLookup{"demo": "K1"}}, false, 401, "MISSING_CREDENTIAL"},
		{"cancelled", Config{Mode: ModeNone, DefaultTenant: "default"}, true, 503, "REQUEST_CANCELLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mw := newBufferedMiddleware(tt.cfg, &buf)

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			if tt.cancel {
				cancel()
			}
			req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil).WithContext(ctx)
			w := &brokenWriter{}
			mw.Handler(http.NotFoundHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.status)
			assert.Contains(t, buf.String(), "Failed to write error response")
			assert.Contains(t, buf.String(), tt.wantCode)
			assert.Contains(t, buf.String(), "connection reset")
		})
	}
}
