package cert

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// Verification errors.
var (
	ErrNoCertificate = errors.New("no certificate presented")
	ErrNameMismatch  = errors.New("peer name mismatch")
)

// VerifyPeer builds a chain-and-name verification callback suitable for
// tls.Config.VerifyPeerCertificate. The peer's chain must verify against
// roots, and when expectedName is non-empty the leaf must carry it as
// CommonName or a DNS SAN.
//
// This is the production verification policy. Development endpoints that
// skip verification must do so explicitly via the handshake configuration,
// never through this helper.
func VerifyPeer(roots *x509.CertPool, expectedName string) func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrNoCertificate
		}

		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("failed to parse peer certificate: %w", err)
		}

		intermediates := x509.NewCertPool()
		for _, raw := range rawCerts[1:] {
			ic, err := x509.ParseCertificate(raw)
			if err != nil {
				continue
			}
			intermediates.AddCert(ic)
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
			CurrentTime:   time.Now(),
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		}
		if _, err := leaf.Verify(opts); err != nil {
			return fmt.Errorf("certificate chain verification failed: %w", err)
		}

		if expectedName != "" && !matchesName(leaf, expectedName) {
			return fmt.Errorf("%w: expected %s, got %s", ErrNameMismatch, expectedName, leaf.Subject.CommonName)
		}

		return nil
	}
}

// matchesName reports whether the certificate carries name as its
// CommonName or one of its DNS SANs.
func matchesName(c *x509.Certificate, name string) bool {
	if c.Subject.CommonName == name {
		return true
	}
	for _, dns := range c.DNSNames {
		if dns == name {
			return true
		}
	}
	return false
}
