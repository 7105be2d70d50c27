package federated

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwksServer struct {
	*httptest.Server
	mu       sync.Mutex
	keys     map[string]*rsa.PublicKey
	status   int
	requests atomic.Int32
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	s := &jwksServer{keys: map[string]*rsa.PublicKey{}, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}
		var set jose.JSONWebKeySet
		for kid, key := range s.keys {
			set.Keys = append(set.Keys, jose.JSONWebKey{Key: key, KeyID: kid, Algorithm: "RS256", Use: "sig"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) setKeys(keys map[string]*rsa.PublicKey, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
	s.status = status
}

func newTestKeySet(t *testing.T, url string, gap time.Duration) *RemoteKeySet {
	t.Helper()
	ks, err := NewRemoteKeySet(KeySetConfig{
		URL:             url,
		RefreshInterval: time.Hour,
		MinRefreshGap:   gap,
	}, logging.NewNopLogger(), metrics.NewCollector())
	require.NoError(t, err)
	return ks
}

func TestRemoteKeySet_RefreshAndLookup(t *testing.T) {
	key := generateKey(t)
	srv := newJWKSServer(t)
	srv.setKeys(map[string]*rsa.PublicKey{testKID: &key.PublicKey}, http.StatusOK)

	ks := newTestKeySet(t, srv.URL, time.Minute)
	_, ok := ks.Key(testKID)
	assert.False(t, ok, "empty before first refresh")

	require.NoError(t, ks.Refresh(t.Context()))
	assert.Equal(t, 1, ks.Len())
	assert.False(t, ks.FetchedAt().IsZero())

	got, ok := ks.Key(testKID)
	require.True(t, ok)
	assert.True(t, key.PublicKey.Equal(got))
}

func TestRemoteKeySet_FailedRefreshKeepsSnapshot(t *testing.T) {
	key := generateKey(t)
	srv := newJWKSServer(t)
	srv.setKeys(map[string]*rsa.PublicKey{testKID: &key.PublicKey}, http.StatusOK)

	ks := newTestKeySet(t, srv.URL, time.Minute)
	require.NoError(t, ks.Refresh(t.Context()))

	srv.setKeys(nil, http.StatusInternalServerError)
	assert.Error(t, ks.Refresh(t.Context()))

	_, ok := ks.Key(testKID)
	assert.True(t, ok)
}

func TestRemoteKeySet_EmptySetIsAnError(t *testing.T) {
	srv := newJWKSServer(t)
	ks := newTestKeySet(t, srv.URL, time.Minute)
	assert.Error(t, ks.Refresh(t.Context()))
}

func TestRemoteKeySet_UnknownKidTriggersBackgroundRefresh(t *testing.T) {
	first := generateKey(t)
	rotated := generateKey(t)
	srv := newJWKSServer(t)
	srv.setKeys(map[string]*rsa.PublicKey{testKID: &first.PublicKey}, http.StatusOK)

	ks := newTestKeySet(t, srv.URL, time.Nanosecond)
	require.NoError(t, ks.Refresh(t.Context()))

	ctx := t.Context()
	go ks.Run(ctx)

	srv.setKeys(map[string]*rsa.PublicKey{testKID: &first.PublicKey, "key-2": &rotated.PublicKey}, http.StatusOK)

	_, ok := ks.Key("key-2")
	assert.False(t, ok, "lookup never blocks on a fetch")

	assert.Eventually(t, func() bool {
		_, ok := ks.Key("key-2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoteKeySet_HintsAreThrottled(t *testing.T) {
	key := generateKey(t)
	srv := newJWKSServer(t)
	srv.setKeys(map[string]*rsa.PublicKey{testKID: &key.PublicKey}, http.StatusOK)

	ks := newTestKeySet(t, srv.URL, time.Hour)
	require.NoError(t, ks.Refresh(t.Context()))
	go ks.Run(t.Context())

	for range 50 {
		ks.Key("missing")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), srv.requests.Load())
}

func TestRemoteKeySet_VerifierUsesSnapshot(t *testing.T) {
	key := generateKey(t)
	srv := newJWKSServer(t)
	srv.setKeys(map[string]*rsa.PublicKey{testKID: &key.PublicKey}, http.StatusOK)

	ks := newTestKeySet(t, srv.URL, time.Minute)
	require.NoError(t, ks.Refresh(t.Context()))

	v, err := NewVerifier(Config{
		Issuers:  []string{FirebaseIssuer(testProject)},
		Audience: testProject,
		Now:      func() time.Time { return testNow },
	}, ks)
	require.NoError(t, err)

	before := srv.requests.Load()
	for range 5 {
		_, err := v.Verify(t.Context(), signToken(t, key, testKID, validClaims()))
		require.NoError(t, err)
	}
	assert.Equal(t, before, srv.requests.Load())
}

func TestNewRemoteKeySet_RequiresURL(t *testing.T) {
	_, err := NewRemoteKeySet(KeySetConfig{}, logging.NewNopLogger(), metrics.NewCollector())
	assert.Error(t, err)
}

func TestDiscoverJWKSURL(t *testing.T) {
	var issuer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"jwks_uri":               issuer + "/keys",
			"authorization_endpoint": issuer + "/auth",
			"token_endpoint":         issuer + "/token",
		})
	}))
	defer srv.Close()
	issuer = srv.URL

	got, err := DiscoverJWKSURL(t.Context(), issuer, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, issuer+"/keys", got)
}

func TestLookupClaim(t *testing.T) {
	claims := map[string]any{
		"tenant_id": "acme",
		"firebase":  map[string]any{"tenant": "t-1"},
	}
	assert.Equal(t, "acme", claimString(claims, "tenant_id"))
	assert.Equal(t, "t-1", claimString(claims, "firebase.tenant"))
	assert.Empty(t, claimString(claims, "firebase.missing"))
	assert.Empty(t, claimString(claims, "tenant_id.deeper"))
}
