package cert

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
)

// PEM encoding/decoding errors.
var (
	ErrInvalidPEM = errors.New("invalid PEM data")
	ErrInvalidKey = errors.New("invalid private key")
)

// EncodeCertPEM encodes an X.509 certificate to PEM format.
func EncodeCertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})
}

// DecodeCertPEM decodes a PEM-encoded X.509 certificate.
func DecodeCertPEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrInvalidPEM
	}
	return x509.ParseCertificate(block.Bytes)
}

// EncodeKeyPEM encodes an ECDSA private key to PEM format.
func EncodeKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: der,
	}), nil
}

// DecodeKeyPEM decodes a PEM-encoded ECDSA private key.
func DecodeKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, ErrInvalidPEM
	}
	return x509.ParseECPrivateKey(block.Bytes)
}

// WriteCredentialFiles writes a credential's certificate and key to PEM
// files. The key file is created with restricted permissions.
func WriteCredentialFiles(certPath, keyPath string, cred *DevCredential) error {
	if err := os.WriteFile(certPath, EncodeCertPEM(cred.Certificate), 0644); err != nil {
		return err
	}
	keyData, err := EncodeKeyPEM(cred.PrivateKey)
	if err != nil {
		return err
	}
	return os.WriteFile(keyPath, keyData, 0600)
}

// ReadCredentialFiles loads a credential from certificate and key PEM files.
func ReadCredentialFiles(certPath, keyPath string) (*DevCredential, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}
	leaf, err := DecodeCertPEM(certData)
	if err != nil {
		return nil, err
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	key, err := DecodeKeyPEM(keyData)
	if err != nil {
		return nil, err
	}
	if !key.PublicKey.Equal(leaf.PublicKey) {
		return nil, ErrInvalidKey
	}
	return &DevCredential{Certificate: leaf, PrivateKey: key}, nil
}
