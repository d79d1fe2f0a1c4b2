package crypto

import (
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/nicolas314/twoca/internal/pki"
)

// DefaultDHBits is the DH prime size used when none is requested.
const DefaultDHBits = 2048

// dhPEMType is the PEM block type for PKCS#3 DH parameters, as written
// by OpenSSL.
const dhPEMType = "DH PARAMETERS"

// DHParams holds Diffie-Hellman group parameters: a safe prime P and the
// generator G.
type DHParams struct {
	P *big.Int
	G *big.Int
}

// GenerateDHParams generates DH parameters with a safe prime of the
// requested bit size and generator 2. Following OpenSSL, the prime is
// constrained to p = 11 (mod 24) so that 2 generates the full q-order
// subgroup. This search can take a long time for large sizes.
func GenerateDHParams(random io.Reader, bits int) (*DHParams, error) {
	if bits < 128 {
		return nil, pki.E("dh", pki.KindRequest,
			fmt.Errorf("DH prime size too small: %d bits", bits))
	}

	one := big.NewInt(1)
	mod24 := big.NewInt(24)
	rem11 := big.NewInt(11)

	for {
		q, err := rand.Prime(random, bits-1)
		if err != nil {
			return nil, pki.E("dh", pki.KindCrypto,
				fmt.Errorf("prime generation failed: %w", err))
		}

		// p = 2q + 1
		p := new(big.Int).Lsh(q, 1)
		p.Add(p, one)

		if p.BitLen() != bits {
			continue
		}
		if new(big.Int).Mod(p, mod24).Cmp(rem11) != 0 {
			continue
		}
		if !p.ProbablyPrime(20) {
			continue
		}

		return &DHParams{P: p, G: big.NewInt(2)}, nil
	}
}

// MarshalPEM encodes the parameters as a PKCS#3 DHParameter structure,
// wrapped in a "DH PARAMETERS" PEM block.
func (d *DHParams) MarshalPEM() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(d.P)
		b.AddASN1BigInt(d.G)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, pki.E("dh", pki.KindCrypto,
			fmt.Errorf("failed to encode DH parameters: %w", err))
	}

	return pem.EncodeToMemory(&pem.Block{Type: dhPEMType, Bytes: der}), nil
}

// ParseDHParamsPEM decodes a "DH PARAMETERS" PEM block back into its
// prime and generator.
func ParseDHParamsPEM(data []byte) (*DHParams, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != dhPEMType {
		return nil, pki.E("dh", pki.KindStore,
			fmt.Errorf("no DH parameters found in PEM input"))
	}

	params := &DHParams{P: new(big.Int), G: new(big.Int)}
	input := cryptobyte.String(block.Bytes)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, casn1.SEQUENCE) ||
		!inner.ReadASN1Integer(params.P) ||
		!inner.ReadASN1Integer(params.G) {
		return nil, pki.E("dh", pki.KindStore,
			fmt.Errorf("malformed DH parameter structure"))
	}

	return params, nil
}
