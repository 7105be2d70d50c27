package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoiceapi/internal/auth"
	"invoiceapi/internal/observability/logging"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	h := NewHandler(NewMemoryStore(), logging.NewNopLogger())
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	r := mux.NewRouter()
	h.Register(r.PathPrefix("/v1/admin").Subrouter())
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

func TestCreateTenant(t *testing.T) {
	h := newTestRouter(t)

	rec := do(h, http.MethodPost, "/v1/admin/tenants", `{"tenant_id":"acme-corp","display_name":"ACME"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tenant Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.Equal(t, "acme-corp", tenant.TenantID)
	assert.Equal(t, "active", tenant.Status)
	assert.Contains(t, rec.Body.String(), `"created_at":"2026-03-01T12:00:00Z"`)

	rec = do(h, http.MethodPost, "/v1/admin/tenants", `{"tenant_id":"acme-corp"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "TENANT_ALREADY_EXISTS", errorCode(t, rec))
}

func TestCreateTenant_Validation(t *testing.T) {
	h := newTestRouter(t)

	for name, body := range map[string]string{
		"uppercase":      `{"tenant_id":"ACME"}`,
		"trailing dash":  `{"tenant_id":"acme-"}`,
		"underscore":     `{"tenant_id":"ac_me"}`,
		"too short":      `{"tenant_id":"a"}`,
		"missing":        `{}`,
		"unknown field":  `{"tenant_id":"acme","plan":"gold"}`,
		"long name":      `{"tenant_id":"acme","display_name":"` + strings.Repeat("x", 129) + `"}`,
		"malformed json": `{`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/v1/admin/tenants", body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		})
	}
}

func TestListTenants(t *testing.T) {
	h := newTestRouter(t)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/v1/admin/tenants", `{"tenant_id":"`+id+`"}`).Code)
	}

	rec := do(h, http.MethodGet, "/v1/admin/tenants?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tenants []Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenants))
	require.Len(t, tenants, 2)
	assert.Equal(t, "alpha", tenants[0].TenantID)
	assert.Equal(t, "mid", tenants[1].TenantID)

	assert.Equal(t, http.StatusUnprocessableEntity, do(h, http.MethodGet, "/v1/admin/tenants?limit=0", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(h, http.MethodGet, "/v1/admin/tenants?limit=501", "").Code)
}

func TestUsers(t *testing.T) {
	h := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/v1/admin/tenants", `{"tenant_id":"acme"}`).Code)

	rec := do(h, http.MethodPost, "/v1/admin/users", `{"tenant_id":"acme","user_id":"u-1","role":"viewer","email":"a@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/v1/admin/users", `{"tenant_id":"acme","user_id":"u-1","role":"viewer"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_ALREADY_EXISTS", errorCode(t, rec))

	rec = do(h, http.MethodPost, "/v1/admin/users", `{"tenant_id":"nobody","user_id":"u-1","role":"viewer"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TENANT_NOT_FOUND", errorCode(t, rec))

	rec = do(h, http.MethodPost, "/v1/admin/users", `{"tenant_id":"acme","user_id":"u-2","role":"viewer","email":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(h, http.MethodGet, "/v1/admin/users?tenant_id=acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var users []User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "u-1", users[0].UserID)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/v1/admin/users?tenant_id=nobody", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(h, http.MethodGet, "/v1/admin/users", "").Code)
}

func TestListUsers_MalformedTenantID(t *testing.T) {
	h := newTestRouter(t)

	for _, id := range []string{"ACME", "acme-", "ac_me", "-acme"} {
		t.Run(id, func(t *testing.T) {
			rec := do(h, http.MethodGet, "/v1/admin/users?tenant_id="+id, "")
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		})
	}
}

func TestErrorsCarryCorrelationID(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users?tenant_id=nobody", nil)
	rc := auth.NewRequestContext(auth.APIKeyPrincipal("ops"), "corr-42")
	req = req.WithContext(auth.ContextWithRequestContext(req.Context(), rc))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"request_id":"corr-42"`)
}

func TestJSONName(t *testing.T) {
	assert.Equal(t, "tenant_id", jsonName("TenantID"))
	assert.Equal(t, "display_name", jsonName("DisplayName"))
	assert.Equal(t, "email", jsonName("Email"))
}
