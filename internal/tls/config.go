// internal/tls/config.go
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"invoiceapi/internal/observability/logging"
)

// Certificates expiring sooner than this are logged as a warning
const expiryWarning = 14 * 24 * time.Hour

// Config holds the TLS configuration
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// CertPath is the path to the server certificate
	CertPath string

	// KeyPath is the path to the server key
	KeyPath string

	// Now is the clock used for expiry checks; defaults to time.Now
	Now func() time.Time
}

// GetTLSConfig creates a TLS configuration for the server
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	c.Logger.Debug("Initializing TLS configuration")

	if c.CertPath == "" || c.KeyPath == "" {
		return nil, errors.New("certificate and key paths are required")
	}

	pair, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	leaf, err := LeafCertificate(pair)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if err := VerifyValidity(leaf, now()); err != nil {
		return nil, fmt.Errorf("server certificate %s: %w", c.CertPath, err)
	}
	if remaining := leaf.NotAfter.Sub(now()); remaining < expiryWarning {
		c.Logger.Warn("Server certificate expires soon",
			"subject", leaf.Subject.CommonName,
			"not_after", leaf.NotAfter,
		)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12, // Enforce minimum TLS version
	}

	c.Logger.Info("TLS configuration successful",
		"subject", leaf.Subject.CommonName,
		"dns_names", leaf.DNSNames,
	)
	return tlsConfig, nil
}
