// Package crypto provides the key generation, serial allocation and
// Diffie-Hellman parameter primitives used by the CA.
package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"io"
	"strings"

	"github.com/nicolas314/twoca/internal/pki"
)

// DefaultRSABits is the RSA modulus size used when the request does not
// specify one.
const DefaultRSABits = 2048

// KeySpec describes the key pair to generate: an RSA modulus size or a
// named elliptic curve, never both.
type KeySpec struct {
	RSABits int
	Curve   string
}

// IsEC reports whether the spec names an elliptic curve.
func (s KeySpec) IsEC() bool {
	return s.Curve != ""
}

// String returns a human-readable description of the spec.
func (s KeySpec) String() string {
	if s.IsEC() {
		return fmt.Sprintf("EC key [%s]", s.Curve)
	}
	return fmt.Sprintf("RSA-%d key", s.bits())
}

func (s KeySpec) bits() int {
	if s.RSABits == 0 {
		return DefaultRSABits
	}
	return s.RSABits
}

// curves maps curve names (and their common aliases) to stdlib curves.
var curves = map[string]elliptic.Curve{
	"secp224r1":  elliptic.P224(),
	"p-224":      elliptic.P224(),
	"secp256r1":  elliptic.P256(),
	"prime256v1": elliptic.P256(),
	"p-256":      elliptic.P256(),
	"secp384r1":  elliptic.P384(),
	"p-384":      elliptic.P384(),
	"secp521r1":  elliptic.P521(),
	"p-521":      elliptic.P521(),
}

// CurveByName resolves a curve name to a stdlib curve. Unknown names are
// a crypto error, detected before any key material is produced.
func CurveByName(name string) (elliptic.Curve, error) {
	if c, ok := curves[strings.ToLower(name)]; ok {
		return c, nil
	}
	return nil, pki.E("keygen", pki.KindCrypto,
		fmt.Errorf("%w: %q", pki.ErrUnknownCurve, name))
}

// GenerateKey generates a key pair according to the spec. The returned
// signer is an *rsa.PrivateKey or *ecdsa.PrivateKey.
func GenerateKey(random io.Reader, spec KeySpec) (crypto.Signer, error) {
	if spec.IsEC() {
		curve, err := CurveByName(spec.Curve)
		if err != nil {
			return nil, err
		}
		key, err := ecdsa.GenerateKey(curve, random)
		if err != nil {
			return nil, pki.E("keygen", pki.KindCrypto,
				fmt.Errorf("failed to generate EC key: %w", err))
		}
		return key, nil
	}

	key, err := rsa.GenerateKey(random, spec.bits())
	if err != nil {
		return nil, pki.E("keygen", pki.KindCrypto,
			fmt.Errorf("failed to generate RSA-%d key: %w", spec.bits(), err))
	}
	return key, nil
}
