package ca

import (
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/nicolas314/twoca/internal/audit"
	twocrypto "github.com/nicolas314/twoca/internal/crypto"
	"github.com/nicolas314/twoca/internal/pki"
	"github.com/nicolas314/twoca/internal/profile"
	"github.com/nicolas314/twoca/internal/x509util"
)

// DefaultValidityDays is the certificate validity used when the request
// does not specify one.
const DefaultValidityDays = 3650

// MaxSANEntries bounds the number of subject-alternative-name entries a
// single request may carry. Oversized requests are rejected at
// validation time rather than truncated.
const MaxSANEntries = 64

// Request describes one certificate to issue. It is constructed per
// invocation and never mutated by the engine except for the issuer
// organization copy documented on Issue.
type Request struct {
	Profile    profile.Profile
	CommonName string

	// Organization is only honored for root CAs; every other profile
	// inherits the issuer's organization.
	Organization string
	Country      string
	Locality     string
	State        string

	// Days is the validity period; zero means DefaultValidityDays.
	Days int

	// SigningCA names the issuing identity. Ignored for root CAs.
	SigningCA string

	// SANs are optional subject-alternative-name entries in caller order.
	SANs []profile.SAN

	// Key selects RSA (with bit size) or a named EC curve. EC keys are
	// only accepted for the client profile.
	Key twocrypto.KeySpec

	// Passphrase, when non-empty, encrypts the new private key PEM.
	Passphrase string

	// IssuerPassphrase decrypts the signing CA's key when that key was
	// stored encrypted.
	IssuerPassphrase string
}

// Engine issues identities into a store.
type Engine struct {
	store  *Store
	random io.Reader
	audit  audit.Writer
}

// NewEngine creates an issuance engine. A nil audit writer disables
// audit logging.
func NewEngine(store *Store, auditw audit.Writer) *Engine {
	if auditw == nil {
		auditw = audit.NopWriter{}
	}
	return &Engine{store: store, random: rand.Reader, audit: auditw}
}

// Issue runs the full issuance sequence: validate, load issuer (non-root
// only), generate key, build certificate, sign, persist. It fails before
// any cryptographic work when the target identity already exists, and
// never overwrites artifacts.
func (e *Engine) Issue(req Request) (*Identity, error) {
	if err := e.Validate(req); err != nil {
		return nil, err
	}

	// Load the signing CA; root CAs sign themselves. The issued
	// certificate's organization always matches its issuer, so for
	// non-root profiles the issuer's O replaces the requested one.
	var issuer *Identity
	if !req.Profile.SelfSigned() {
		var err error
		issuer, err = e.store.LoadIdentity(req.SigningCA, []byte(req.IssuerPassphrase))
		if err != nil {
			if pki.IsTrust(err) {
				_ = e.audit.Write(audit.NewEvent(audit.EventAuthFailed,
					audit.Object{Type: "ca", Subject: req.SigningCA}, audit.ResultFailure))
			}
			return nil, err
		}
		if orgs := issuer.Cert.Subject.Organization; len(orgs) > 0 {
			req.Organization = orgs[0]
		}
	}

	key, err := twocrypto.GenerateKey(e.random, req.Key)
	if err != nil {
		return nil, err
	}

	serial, err := twocrypto.NewSerial(e.random)
	if err != nil {
		return nil, err
	}

	skid, err := x509util.SubjectKeyID(key.Public())
	if err != nil {
		return nil, pki.E("issue", pki.KindCrypto, err)
	}

	days := req.Days
	if days <= 0 {
		days = DefaultValidityDays
	}
	now := time.Now().UTC()

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: x509util.Subject(req.Country, req.Organization,
			req.CommonName, req.Profile.OrgUnit(), req.Locality, req.State),
		NotBefore:    now,
		NotAfter:     now.Add(time.Duration(days) * 24 * time.Hour),
		SubjectKeyId: skid,
	}

	if err := profile.Apply(req.Profile, tmpl, req.SANs); err != nil {
		return nil, err
	}

	parent := tmpl
	signer := key
	if issuer != nil {
		parent = issuer.Cert
		signer = issuer.Key
		tmpl.AuthorityKeyId = issuer.Cert.SubjectKeyId
	} else {
		tmpl.AuthorityKeyId = skid
	}

	der, err := x509.CreateCertificate(e.random, tmpl, parent, key.Public(), signer)
	if err != nil {
		return nil, pki.E("issue", pki.KindCrypto,
			fmt.Errorf("failed to sign certificate: %w", err))
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, pki.E("issue", pki.KindCrypto,
			fmt.Errorf("failed to parse issued certificate: %w", err))
	}

	// Verify the fresh certificate against its intended issuer. This is
	// the only chain check the tool performs.
	checkAgainst := cert
	if issuer != nil {
		checkAgainst = issuer.Cert
	}
	if err := cert.CheckSignatureFrom(checkAgainst); err != nil {
		return nil, pki.E("issue", pki.KindCrypto,
			fmt.Errorf("issued certificate failed verification: %w", err))
	}

	id := &Identity{Key: key, Cert: cert}
	if err := e.store.SaveIdentity(req.CommonName, id, []byte(req.Passphrase)); err != nil {
		return nil, err
	}

	if err := e.audit.Write(audit.NewEvent(audit.EventCertIssued, audit.Object{
		Type:    "certificate",
		Serial:  fmt.Sprintf("0x%X", cert.SerialNumber),
		Subject: cert.Subject.String(),
		Issuer:  cert.Issuer.String(),
		Path:    e.store.CertPath(req.CommonName),
	}, audit.ResultSuccess)); err != nil {
		return nil, err
	}

	return id, nil
}

// Validate enforces the request invariants before any key material is
// produced or any file touched. Issue runs it first; callers that want
// to report progress between validation and the slow key generation can
// run it themselves beforehand.
func (e *Engine) Validate(req Request) error {
	if req.CommonName == "" {
		return pki.E("issue", pki.KindRequest, pki.ErrEmptyCommonName)
	}
	if err := checkName(req.CommonName); err != nil {
		return err
	}
	if !req.Profile.Valid() {
		return pki.E("issue", pki.KindRequest,
			fmt.Errorf("%w: %d", pki.ErrUnknownProfile, int(req.Profile)))
	}
	if req.Key.IsEC() && !req.Profile.AllowsECKey() {
		return pki.E("issue", pki.KindRequest, pki.ErrECNotAllowed)
	}
	if len(req.SANs) > MaxSANEntries {
		return pki.E("issue", pki.KindRequest,
			fmt.Errorf("too many SAN entries: %d (limit %d)", len(req.SANs), MaxSANEntries))
	}
	if e.store.HasIdentity(req.CommonName) {
		return pki.E("issue", pki.KindConflict,
			fmt.Errorf("%w: %s", pki.ErrIdentityExists, req.CommonName))
	}
	return nil
}
