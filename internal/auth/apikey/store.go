// internal/auth/apikey/store.go
package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"invoiceapi/internal/auth"
)

// Configuration errors. All of them are fatal at startup.
var (
	ErrAmbiguousConfiguration = errors.New("more than one api key configuration shape is set")
	ErrNoCredentials          = errors.New("no api keys configured")
	ErrDuplicateSecret        = errors.New("two tenants share the same api key")
	ErrEmptySecret            = errors.New("empty api key")
	ErrInvalidTenantID        = errors.New("invalid tenant id")
	ErrMalformedConfiguration = errors.New("malformed api key configuration")
)

// anonymousTenantPrefix names tenants created from the flat list shape.
const anonymousTenantPrefix = "anon-"

// Config holds the raw credential configuration. Exactly one of Single,
// KeysJSON and List may be set.
type Config struct {
	// Single is one secret for DefaultTenant (API_KEY).
	Single string

	// KeysJSON is a JSON object of tenant id to secret (API_KEYS_JSON).
	KeysJSON string

	// List is comma-separated secrets, each its own tenant (API_KEYS).
	List string

	// DefaultTenant owns Single.
	DefaultTenant string
}

type entry struct {
	tenantID string
	digest   [sha256.Size]byte
}

// Store is an immutable set of tenant credentials. Only SHA-256 digests of
// the secrets are retained.
type Store struct {
	entries []entry
}

// Load normalizes the configured shape into one tenant to secret mapping.
func Load(cfg Config) (*Store, error) {
	var shapes int
	for _, set := range []bool{
		strings.TrimSpace(cfg.Single) != "",
		strings.TrimSpace(cfg.KeysJSON) != "",
		strings.TrimSpace(cfg.List) != "",
	} {
		if set {
			shapes++
		}
	}

	switch {
	case shapes == 0:
		return nil, ErrNoCredentials
	case shapes > 1:
		return nil, ErrAmbiguousConfiguration
	}

	var (
		secrets map[string]string
		err     error
	)
	switch {
	case strings.TrimSpace(cfg.Single) != "":
		secrets, err = fromSingle(cfg.Single, cfg.DefaultTenant)
	case strings.TrimSpace(cfg.KeysJSON) != "":
		secrets, err = fromJSON(cfg.KeysJSON)
	default:
		secrets, err = fromList(cfg.List)
	}
	if err != nil {
		return nil, err
	}

	return newStore(secrets)
}

// New builds a store from an explicit tenant to secret mapping.
func New(secrets map[string]string) (*Store, error) {
	if len(secrets) == 0 {
		return nil, ErrNoCredentials
	}
	return newStore(secrets)
}

func newStore(secrets map[string]string) (*Store, error) {
	tenants := make([]string, 0, len(secrets))
	for tenantID := range secrets {
		tenants = append(tenants, tenantID)
	}
	sort.Strings(tenants)

	s := &Store{entries: make([]entry, 0, len(tenants))}
	owners := make(map[[sha256.Size]byte]string, len(tenants))
	for _, tenantID := range tenants {
		if !auth.ValidTenantID(tenantID) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
		}
		secret := secrets[tenantID]
		if secret == "" {
			return nil, fmt.Errorf("%w for tenant %q", ErrEmptySecret, tenantID)
		}

		digest := sha256.Sum256([]byte(secret))
		if other, dup := owners[digest]; dup {
			return nil, fmt.Errorf("%w: tenants %q and %q", ErrDuplicateSecret, other, tenantID)
		}
		owners[digest] = tenantID
		s.entries = append(s.entries, entry{tenantID: tenantID, digest: digest})
	}
	return s, nil
}

func fromSingle(secret, tenantID string) (map[string]string, error) {
	return map[string]string{tenantID: strings.TrimSpace(secret)}, nil
}

func fromJSON(raw string) (map[string]string, error) {
	var secrets map[string]string
	if err := json.Unmarshal([]byte(raw), &secrets); err != nil {
		return nil, fmt.Errorf("%w: API_KEYS_JSON: %v", ErrMalformedConfiguration, err)
	}
	if len(secrets) == 0 {
		return nil, ErrNoCredentials
	}
	for tenantID, secret := range secrets {
		secrets[tenantID] = strings.TrimSpace(secret)
	}
	return secrets, nil
}

func fromList(raw string) (map[string]string, error) {
	secrets := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		secret := strings.TrimSpace(part)
		if secret == "" {
			continue
		}
		tenantID := AnonymousTenantID(secret)
		if _, dup := secrets[tenantID]; dup {
			return nil, fmt.Errorf("%w: repeated entry in API_KEYS", ErrDuplicateSecret)
		}
		secrets[tenantID] = secret
	}
	if len(secrets) == 0 {
		return nil, ErrNoCredentials
	}
	return secrets, nil
}

// AnonymousTenantID is the tenant id given to a secret of the flat list
// shape. It is derived from the secret digest and never reveals the secret.
func AnonymousTenantID(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return anonymousTenantPrefix + hex.EncodeToString(digest[:8])
}

// Lookup returns the tenant whose secret equals the presented one. Every
// entry is compared in constant time and the loop never exits early.
func (s *Store) Lookup(secret string) (string, bool) {
	if secret == "" {
		return "", false
	}
	presented := sha256.Sum256([]byte(secret))

	var (
		tenantID string
		found    int
	)
	for i := range s.entries {
		match := subtle.ConstantTimeCompare(presented[:], s.entries[i].digest[:])
		if match == 1 {
			tenantID = s.entries[i].tenantID
		}
		found |= match
	}
	return tenantID, found == 1
}

// Len returns the number of tenants in the store.
func (s *Store) Len() int { return len(s.entries) }

// Tenants returns the tenant ids in the store, sorted.
func (s *Store) Tenants() []string {
	ids := make([]string, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.tenantID
	}
	return ids
}

var _ auth.CredentialLookup = (*Store)(nil)
