// Package x509util provides small helpers shared by certificate and CRL
// construction.
package x509util

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
)

// SubjectKeyID computes a subject key identifier for a public key:
// the first 160 bits of the SHA-256 hash of the DER-encoded
// SubjectPublicKeyInfo (RFC 7093 method 1).
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	hash := sha256.Sum256(spki)
	return hash[:20], nil
}

// Subject assembles a distinguished name. Country, locality and state
// are dropped when empty; organization, common name and organizational
// unit are always present.
func Subject(country, org, cn, ou, locality, state string) pkix.Name {
	name := pkix.Name{
		Organization:       []string{org},
		OrganizationalUnit: []string{ou},
		CommonName:         cn,
	}
	if country != "" {
		name.Country = []string{country}
	}
	if locality != "" {
		name.Locality = []string{locality}
	}
	if state != "" {
		name.Province = []string{state}
	}
	return name
}

// PublicKeysMatch reports whether the private key's public half equals
// the certificate's public key. All stdlib key types implement the
// Equal method used here.
func PublicKeysMatch(key crypto.Signer, cert *x509.Certificate) bool {
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return false
	}
	return pub.Equal(cert.PublicKey)
}
