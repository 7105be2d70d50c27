// internal/auth/federated/keyset.go
package federated

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/observability/metrics"

	jose "github.com/go-jose/go-jose/v4"
)

// maxJWKSBytes bounds the size of a key set document.
const maxJWKSBytes = 1 << 20

// KeySource resolves a key id to a trusted verification key. Implementations
// must not block on I/O.
type KeySource interface {
	Key(kid string) (crypto.PublicKey, bool)
}

// snapshot is one complete, immutable fetch of the key set.
type snapshot struct {
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time
}

// KeySetConfig configures a remote key set.
type KeySetConfig struct {
	// URL is the JWKS endpoint.
	URL string

	// RefreshInterval is the period of the background refresh. Default: 1 hour.
	RefreshInterval time.Duration

	// MinRefreshGap throttles refreshes triggered by unknown key ids. Default: 30 seconds.
	MinRefreshGap time.Duration

	// HTTPClient is used for fetches. If nil, a client with a 10 second timeout is used.
	HTTPClient *http.Client
}

func (c *KeySetConfig) applyDefaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Hour
	}
	if c.MinRefreshGap <= 0 {
		c.MinRefreshGap = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// RemoteKeySet caches the keys of a JWKS endpoint. Readers load the current
// snapshot without locking; Refresh swaps in a complete new snapshot.
// Fetches only happen in Refresh, never on the verification path.
type RemoteKeySet struct {
	cfg     KeySetConfig
	logger  *logging.Logger
	metrics *metrics.Collector

	current atomic.Pointer[snapshot]
	hints   chan struct{}
}

// NewRemoteKeySet creates an empty key set. Call Refresh before serving.
func NewRemoteKeySet(cfg KeySetConfig, logger *logging.Logger, metrics *metrics.Collector) (*RemoteKeySet, error) {
	if cfg.URL == "" {
		return nil, errors.New("key set URL is required")
	}
	cfg.applyDefaults()

	ks := &RemoteKeySet{
		cfg:     cfg,
		logger:  logger.WithModule("auth.keyset"),
		metrics: metrics,
		hints:   make(chan struct{}, 1),
	}
	ks.current.Store(&snapshot{keys: map[string]crypto.PublicKey{}})
	return ks, nil
}

// Key returns the key with the given id from the current snapshot. A miss
// asks the background loop for an early refresh and returns immediately.
func (ks *RemoteKeySet) Key(kid string) (crypto.PublicKey, bool) {
	key, ok := ks.current.Load().keys[kid]
	if !ok {
		select {
		case ks.hints <- struct{}{}:
		default:
		}
	}
	return key, ok
}

// Len returns the number of keys in the current snapshot.
func (ks *RemoteKeySet) Len() int {
	return len(ks.current.Load().keys)
}

// FetchedAt returns when the current snapshot was fetched.
func (ks *RemoteKeySet) FetchedAt() time.Time {
	return ks.current.Load().fetchedAt
}

// Refresh fetches the key set and replaces the snapshot. On failure the
// previous snapshot stays in place.
func (ks *RemoteKeySet) Refresh(ctx context.Context) error {
	keys, err := ks.fetch(ctx)
	if err != nil {
		ks.metrics.RecordKeyRefresh(false, 0)
		return err
	}

	ks.current.Store(&snapshot{keys: keys, fetchedAt: time.Now()})
	ks.metrics.RecordKeyRefresh(true, len(keys))
	ks.logger.Debug("Signing keys refreshed",
		"keys", len(keys),
		"url", logging.RedactStringURL(ks.cfg.URL),
	)
	return nil
}

// Run refreshes the key set periodically and on unknown key hints until ctx
// is done.
func (ks *RemoteKeySet) Run(ctx context.Context) {
	ticker := time.NewTicker(ks.cfg.RefreshInterval)
	defer ticker.Stop()

	lastAttempt := ks.FetchedAt()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-ks.hints:
			if time.Since(lastAttempt) < ks.cfg.MinRefreshGap {
				continue
			}
		}

		lastAttempt = time.Now()
		if err := ks.Refresh(ctx); err != nil && ctx.Err() == nil {
			ks.logger.Warn("Signing key refresh failed, keeping previous keys",
				"keys", ks.Len(),
				logging.Err(err),
			)
		}
	}
}

func (ks *RemoteKeySet) fetch(ctx context.Context) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("reading JWKS response: %w", err)
	}

	return ks.parse(body)
}

func (ks *RemoteKeySet) parse(body []byte) (map[string]crypto.PublicKey, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID == "" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		if !jwk.Valid() || !jwk.IsPublic() {
			ks.logger.Warn("Skipping unusable JWKS key", "kid", jwk.KeyID)
			continue
		}
		keys[jwk.KeyID] = jwk.Key
	}

	if len(keys) == 0 {
		return nil, errors.New("JWKS contains no usable signing keys")
	}
	return keys, nil
}

// StaticKeySet is a fixed set of keys.
type StaticKeySet map[string]crypto.PublicKey

// Key implements KeySource
func (s StaticKeySet) Key(kid string) (crypto.PublicKey, bool) {
	key, ok := s[kid]
	return key, ok
}

var (
	_ KeySource = (*RemoteKeySet)(nil)
	_ KeySource = StaticKeySet(nil)
)
