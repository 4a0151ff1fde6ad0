package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// Negotiation constants.
const (
	// DefaultProtocol is the application protocol identifier negotiated
	// by default. Both ends must agree exactly (case-sensitive).
	DefaultProtocol = "h3"

	// DefaultPort is the default hquic port.
	DefaultPort = 4433
)

// Handshake configuration errors. All of these are fatal and surface
// before any network activity.
var (
	// ErrNoProtocols indicates an empty protocol identifier list.
	ErrNoProtocols = errors.New("protocol identifier list is empty")

	// ErrNoCredential indicates missing certificate material.
	ErrNoCredential = errors.New("certificate is required")

	// ErrNoProtocolOverlap indicates disjoint protocol identifier lists.
	ErrNoProtocolOverlap = errors.New("no protocol identifier overlap")
)

// HandshakeConfig holds the secure-handshake parameters for one role.
type HandshakeConfig struct {
	// Certificate is the endpoint's certificate. Required for servers;
	// optional for clients.
	Certificate tls.Certificate

	// RootCAs is the pool of trusted CA certificates used by clients to
	// verify the server. Nil means the system pool.
	RootCAs *x509.CertPool

	// ServerName is the expected server name for client connections.
	// Used for SNI and certificate-name verification.
	ServerName string

	// Protocols is the ordered list of acceptable application-protocol
	// identifiers, advertised via ALPN. Must not be empty.
	Protocols []string

	// InsecureSkipVerify disables certificate verification.
	// Development only - never use in production!
	InsecureSkipVerify bool

	// VerifyPeerCertificate is an optional callback for custom
	// certificate verification (see cert.VerifyPeer).
	VerifyPeerCertificate func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

// NewServerTLSConfig creates a TLS configuration for an accepting endpoint.
func NewServerTLSConfig(cfg *HandshakeConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("HandshakeConfig is required")
	}
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, ErrNoCredential
	}
	if len(cfg.Protocols) == 0 {
		return nil, ErrNoProtocols
	}

	return &tls.Config{
		// QUIC mandates TLS 1.3
		MinVersion: tls.VersionTLS13,

		Certificates: []tls.Certificate{cfg.Certificate},

		// ALPN protocol identifiers, in preference order
		NextProtos: append([]string(nil), cfg.Protocols...),

		VerifyPeerCertificate: cfg.VerifyPeerCertificate,
	}, nil
}

// NewClientTLSConfig creates a TLS configuration for an initiating endpoint.
func NewClientTLSConfig(cfg *HandshakeConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("HandshakeConfig is required")
	}
	if len(cfg.Protocols) == 0 {
		return nil, ErrNoProtocols
	}

	tlsConf := &tls.Config{
		MinVersion: tls.VersionTLS13,

		RootCAs:    cfg.RootCAs,
		ServerName: cfg.ServerName,

		NextProtos: append([]string(nil), cfg.Protocols...),

		VerifyPeerCertificate: cfg.VerifyPeerCertificate,

		// Development only
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if len(cfg.Certificate.Certificate) > 0 {
		tlsConf.Certificates = []tls.Certificate{cfg.Certificate}
	}

	return tlsConf, nil
}

// ProtocolOverlap returns the identifiers present in both lists,
// preserving the first list's order. Returns ErrNoProtocolOverlap when
// the intersection is empty. Disjoint protocol lists are the most common
// integration failure in this layer; checking eagerly turns a cryptic
// handshake error into a configuration error.
func ProtocolOverlap(a, b []string) ([]string, error) {
	inB := make(map[string]struct{}, len(b))
	for _, p := range b {
		inB[p] = struct{}{}
	}

	var overlap []string
	for _, p := range a {
		if _, ok := inB[p]; ok {
			overlap = append(overlap, p)
		}
	}
	if len(overlap) == 0 {
		return nil, fmt.Errorf("%w: %v vs %v", ErrNoProtocolOverlap, a, b)
	}
	return overlap, nil
}

// VerifyConnection checks that a completed handshake negotiated one of
// the configured protocol identifiers.
func VerifyConnection(state tls.ConnectionState, protocols []string) error {
	if state.NegotiatedProtocol == "" {
		return fmt.Errorf("%w: no protocol negotiated", ErrNoProtocolOverlap)
	}
	for _, p := range protocols {
		if state.NegotiatedProtocol == p {
			return nil
		}
	}
	return fmt.Errorf("%w: negotiated %q not in %v", ErrNoProtocolOverlap, state.NegotiatedProtocol, protocols)
}
