// Package ca implements the certificate authority core: the identity
// store, the issuance engine and the revocation ledger.
package ca

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicolas314/twoca/internal/pki"
	"github.com/nicolas314/twoca/internal/x509util"
)

// Identity is an owned (private key, certificate) pair. The two are
// created and persisted together and never separated afterwards.
type Identity struct {
	Key  crypto.Signer
	Cert *x509.Certificate
}

// Store manages one CA universe: a flat directory of PEM files.
//
//	{dir}/
//	  ├── {name}.crt    # certificate for identity {name}
//	  ├── {name}.key    # private key for identity {name}
//	  ├── {name}.crl    # CRL issued by CA {name}
//	  └── dh{bits}.pem  # Diffie-Hellman parameters
type Store struct {
	dir string
}

// NewStore creates a store rooted at the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's base directory.
func (s *Store) Dir() string {
	return s.dir
}

// CertPath returns the certificate path for an identity name.
func (s *Store) CertPath(name string) string {
	return filepath.Join(s.dir, name+".crt")
}

// KeyPath returns the private key path for an identity name.
func (s *Store) KeyPath(name string) string {
	return filepath.Join(s.dir, name+".key")
}

// CRLPath returns the CRL path for an issuer name.
func (s *Store) CRLPath(name string) string {
	return filepath.Join(s.dir, name+".crl")
}

// DHPath returns the path for DH parameters of the given size.
func (s *Store) DHPath(bits int) string {
	return filepath.Join(s.dir, fmt.Sprintf("dh%d.pem", bits))
}

// checkName rejects identity names that would escape the store
// directory once turned into file names.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return pki.E("store", pki.KindRequest,
			fmt.Errorf("invalid identity name: %q", name))
	}
	return nil
}

// HasIdentity reports whether a certificate or key artifact already
// exists under the given name.
func (s *Store) HasIdentity(name string) bool {
	if _, err := os.Stat(s.CertPath(name)); err == nil {
		return true
	}
	if _, err := os.Stat(s.KeyPath(name)); err == nil {
		return true
	}
	return false
}

// SaveIdentity persists the key and certificate under the given name.
// A non-empty passphrase encrypts the key PEM with AES-256. Overwrite
// protection is the issuance engine's job; this is a plain write.
func (s *Store) SaveIdentity(name string, id *Identity, passphrase []byte) error {
	if err := checkName(name); err != nil {
		return err
	}

	der, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		return pki.E("store", pki.KindCrypto,
			fmt.Errorf("failed to marshal private key: %w", err))
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	if len(passphrase) > 0 {
		block, err = x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, passphrase, x509.PEMCipherAES256) //nolint:staticcheck // Deprecated but still used
		if err != nil {
			return pki.E("store", pki.KindCrypto,
				fmt.Errorf("failed to encrypt private key: %w", err))
		}
	}
	if err := writePEM(s.KeyPath(name), block, 0600); err != nil {
		return err
	}

	certBlock := &pem.Block{Type: "CERTIFICATE", Bytes: id.Cert.Raw}
	return writePEM(s.CertPath(name), certBlock, 0644)
}

// LoadCert loads the certificate artifact for an identity name.
func (s *Store) LoadCert(name string) (*x509.Certificate, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.CertPath(name))
	if err != nil {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("%w: %s", pki.ErrCertNotFound, s.CertPath(name)))
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("no certificate found in %s", s.CertPath(name)))
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("failed to parse certificate: %w", err))
	}
	return cert, nil
}

// LoadIdentity loads the certificate and private key for a name and
// checks that they belong together. Both files must exist and the key
// must match the certificate's public key; this check gates every
// non-root issuance and every revocation.
func (s *Store) LoadIdentity(name string, passphrase []byte) (*Identity, error) {
	cert, err := s.LoadCert(name)
	if err != nil {
		return nil, err
	}

	key, err := s.loadKey(name, passphrase)
	if err != nil {
		return nil, err
	}

	if !x509util.PublicKeysMatch(key, cert) {
		return nil, pki.E("store", pki.KindTrust,
			fmt.Errorf("%w: %s", pki.ErrKeyMismatch, name))
	}

	return &Identity{Key: key, Cert: cert}, nil
}

// loadKey reads and parses a private key PEM, decrypting it first when
// it was written with a passphrase.
func (s *Store) loadKey(name string, passphrase []byte) (crypto.Signer, error) {
	data, err := os.ReadFile(s.KeyPath(name))
	if err != nil {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("%w: %s", pki.ErrKeyNotFound, s.KeyPath(name)))
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("no private key found in %s", s.KeyPath(name)))
	}

	keyDER := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // Deprecated but still used
		keyDER, err = x509.DecryptPEMBlock(block, passphrase) //nolint:staticcheck
		if err != nil {
			return nil, pki.E("store", pki.KindTrust,
				fmt.Errorf("failed to decrypt private key: %w", err))
		}
	}

	key, err := parsePrivateKey(keyDER)
	if err != nil {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("failed to parse private key: %w", err))
	}
	return key, nil
}

// parsePrivateKey tries the PKCS#8, PKCS#1 and SEC 1 encodings in turn.
func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("private key type %T cannot sign", key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unrecognized private key encoding")
}

// LoadCRL loads the CRL issued by the named CA. A missing file is
// reported as pki.ErrCRLNotFound; callers that treat "no CRL yet" as an
// empty list check for that sentinel.
func (s *Store) LoadCRL(name string) (*x509.RevocationList, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.CRLPath(name))
	if err != nil {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("%w: %s", pki.ErrCRLNotFound, s.CRLPath(name)))
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "X509 CRL" {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("no CRL found in %s", s.CRLPath(name)))
	}

	crl, err := x509.ParseRevocationList(block.Bytes)
	if err != nil {
		return nil, pki.E("store", pki.KindStore,
			fmt.Errorf("failed to parse CRL: %w", err))
	}
	return crl, nil
}

// SaveCRL persists a DER-encoded CRL for the named CA, replacing any
// previous list in full.
func (s *Store) SaveCRL(name string, der []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	return writePEM(s.CRLPath(name), &pem.Block{Type: "X509 CRL", Bytes: der}, 0644)
}

// SaveDHParams writes PEM-encoded DH parameters to dh{bits}.pem.
func (s *Store) SaveDHParams(bits int, pemData []byte) error {
	if err := os.WriteFile(s.DHPath(bits), pemData, 0644); err != nil {
		return pki.E("store", pki.KindStore,
			fmt.Errorf("failed to write DH parameters: %w", err))
	}
	return nil
}

// writePEM writes a single PEM block to a file.
func writePEM(path string, block *pem.Block, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return pki.E("store", pki.KindStore,
			fmt.Errorf("failed to create %s: %w", path, err))
	}
	defer func() { _ = f.Close() }()

	if err := pem.Encode(f, block); err != nil {
		return pki.E("store", pki.KindStore,
			fmt.Errorf("failed to write %s: %w", path, err))
	}
	return nil
}
