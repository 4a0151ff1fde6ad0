package cert

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"time"
)

// Certificate validity periods.
const (
	// DevCredentialValidity is the validity period for self-signed
	// development credentials. Short on purpose: dev credentials are
	// regenerated between process runs and never persisted in production.
	DevCredentialValidity = 14 * 24 * time.Hour

	// ClockSkewGrace is subtracted from NotBefore so a freshly generated
	// credential is valid even against a slightly slow peer clock.
	ClockSkewGrace = 5 * time.Minute
)

// KeyPair holds an ECDSA P-256 key pair.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// DevCredential is a self-signed certificate plus its private key,
// suitable for development and testing endpoints. Read-only after
// construction.
type DevCredential struct {
	// Certificate is the parsed X.509 leaf certificate.
	Certificate *x509.Certificate

	// PrivateKey is the key matching the certificate.
	PrivateKey *ecdsa.PrivateKey
}

// TLSCertificate returns the credential as a tls.Certificate for use in
// a handshake configuration.
func (c *DevCredential) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{c.Certificate.Raw},
		PrivateKey:  c.PrivateKey,
		Leaf:        c.Certificate,
	}
}

// Pool returns a certificate pool containing only this credential's
// certificate. Clients use this to pin a known dev server certificate
// instead of disabling verification.
func (c *DevCredential) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(c.Certificate)
	return pool
}

// ExpiresAt returns when this credential expires.
func (c *DevCredential) ExpiresAt() time.Time {
	if c.Certificate == nil {
		return time.Time{}
	}
	return c.Certificate.NotAfter
}
