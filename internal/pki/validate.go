// Package pki validates the PEM material configured on TLS listeners
// and persists it to a per-listener scratch area with restrictive
// permissions.
package pki

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"strings"

	"github.com/mocktide/mocktide/internal/core"
)

// keyPEMTypes are the recognized private key header families.
var keyPEMTypes = map[string]struct{}{
	"PRIVATE KEY":     {},
	"RSA PRIVATE KEY": {},
	"EC PRIVATE KEY":  {},
}

// Validator checks PEM certificate, key and CA material. It
// implements core.CertValidator.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCertificate requires a non-empty PEM block with CERTIFICATE
// markers whose body parses as an X.509 certificate.
func (v *Validator) ValidateCertificate(pemBytes []byte) error {
	content := string(pemBytes)
	if strings.TrimSpace(content) == "" {
		return &core.ErrInvalidCertificate{Kind: "certificate", Reason: "empty PEM content"}
	}
	if !strings.Contains(content, "-----BEGIN CERTIFICATE-----") || !strings.Contains(content, "-----END CERTIFICATE-----") {
		return &core.ErrInvalidCertificate{Kind: "certificate", Reason: "missing CERTIFICATE markers"}
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return &core.ErrInvalidCertificate{Kind: "certificate", Reason: "undecodable PEM block"}
	}
	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return &core.ErrInvalidCertificate{Kind: "certificate", Reason: err.Error()}
	}
	return nil
}

// ValidateKeyPair requires a recognized private key PEM family and a
// key that is compatible with the certificate's public key.
func (v *Validator) ValidateKeyPair(certPEM, keyPEM []byte) error {
	if strings.TrimSpace(string(keyPEM)) == "" {
		return &core.ErrInvalidCertificate{Kind: "private key", Reason: "empty PEM content"}
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return &core.ErrInvalidCertificate{Kind: "private key", Reason: "undecodable PEM block"}
	}
	if _, ok := keyPEMTypes[block.Type]; !ok {
		return &core.ErrInvalidCertificate{Kind: "private key", Reason: "unrecognized PEM type " + block.Type}
	}

	// X509KeyPair parses the key and checks it against the
	// certificate's public key in one step.
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		return &core.ErrInvalidCertificate{Kind: "private key", Reason: err.Error()}
	}
	return nil
}
