// internal/tls/utils.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// Certificate validity errors
var (
	ErrNotYetValid = errors.New("certificate is not yet valid")
	ErrExpired     = errors.New("certificate has expired")
)

// LeafCertificate returns the parsed leaf of a key pair
func LeafCertificate(pair tls.Certificate) (*x509.Certificate, error) {
	if pair.Leaf != nil {
		return pair.Leaf, nil
	}
	if len(pair.Certificate) == 0 {
		return nil, errors.New("key pair contains no certificate")
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse server certificate: %w", err)
	}
	return leaf, nil
}

// VerifyValidity checks that cert is within its validity window at now
func VerifyValidity(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("%w until %s", ErrNotYetValid, cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("%w since %s", ErrExpired, cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}
