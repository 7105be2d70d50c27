package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_KeyedMap(t *testing.T) {
	s, err := Load(Config{KeysJSON: `{"demo":"K1","acme":"K2"}`})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"acme", "demo"}, s.Tenants())

	tenant, ok := s.Lookup("K1")
	assert.True(t, ok)
	assert.Equal(t, "demo", tenant)

	tenant, ok = s.Lookup("K2")
	assert.True(t, ok)
	assert.Equal(t, "acme", tenant)

	for _, miss := range []string{"K3", "", "k1", "K1 ", "K"} {
		_, ok := s.Lookup(miss)
		assert.False(t, ok, miss)
	}
}

func TestLoad_Single(t *testing.T) {
	s, err := Load(Config{Single: " secret ", DefaultTenant: "default"})
	require.NoError(t, err)

	tenant, ok := s.Lookup("secret")
	assert.True(t, ok)
	assert.Equal(t, "default", tenant)
}

func TestLoad_FlatList(t *testing.T) {
	s, err := Load(Config{List: "alpha, beta,,"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	a, ok := s.Lookup("alpha")
	require.True(t, ok)
	b, ok := s.Lookup("beta")
	require.True(t, ok)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "anon-"))
	assert.Equal(t, AnonymousTenantID("alpha"), a)
	assert.NotContains(t, a, "alpha")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"nothing", Config{}, ErrNoCredentials},
		{"blank", Config{Single: "  ", List: " , "}, ErrNoCredentials},
		{"single and map", Config{Single: "K", KeysJSON: `{"a":"K1"}`, DefaultTenant: "default"}, ErrAmbiguousConfiguration},
		{"map and list", Config{KeysJSON: `{"a":"K1"}`, List: "K2"}, ErrAmbiguousConfiguration},
		{"duplicate in map", Config{KeysJSON: `{"demo":"K1","acme":"K1"}`}, ErrDuplicateSecret},
		{"duplicate after trim", Config{KeysJSON: `{"demo":"K1","acme":" K1"}`}, ErrDuplicateSecret},
		{"duplicate in list", Config{List: "K1,K2,K1"}, ErrDuplicateSecret},
		{"malformed json", Config{KeysJSON: `{"demo":`}, ErrMalformedConfiguration},
		{"non string secret", Config{KeysJSON: `{"demo":1}`}, ErrMalformedConfiguration},
		{"empty map", Config{KeysJSON: `{}`}, ErrNoCredentials},
		{"empty secret", Config{KeysJSON: `{"demo":""}`}, ErrEmptySecret},
		{"bad tenant", Config{KeysJSON: `{"../x":"K1"}`}, ErrInvalidTenantID},
		{"single without tenant", Config{Single: "K1"}, ErrInvalidTenantID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, s)
		})
	}
}

func TestLoad_DuplicateErrorHidesSecret(t *testing.T) {
	_, err := Load(Config{KeysJSON: `{"demo":"hunter2","acme":"hunter2"}`})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestNew(t *testing.T) {
	s, err := New(map[string]string{"demo": "K1"})
	require.NoError(t, err)
	tenant, ok := s.Lookup("K1")
	assert.True(t, ok)
	assert.Equal(t, "demo", tenant)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNoCredentials)
}
