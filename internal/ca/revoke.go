package ca

import (
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"time"

	"github.com/nicolas314/twoca/internal/audit"
	"github.com/nicolas314/twoca/internal/pki"
)

// CRLValidity is how long a freshly signed CRL remains current.
const CRLValidity = 365 * 24 * time.Hour

// DuplicatePolicy names the ledger's uniqueness policy for revocation
// entries.
type DuplicatePolicy int

const (
	// AllowDuplicates appends a new entry even when the serial is
	// already on the list. This matches the historical behavior:
	// revoking twice yields two entries for the same serial.
	AllowDuplicates DuplicatePolicy = iota

	// RejectDuplicates refuses to revoke a serial that is already on
	// the list.
	RejectDuplicates
)

// Ledger manages the single CRL each CA maintains: creation, entry
// insertion, renumbering and signing. The list is always rewritten in
// full; there is no partial update.
type Ledger struct {
	store  *Store
	random io.Reader
	policy DuplicatePolicy
	audit  audit.Writer
}

// NewLedger creates a revocation ledger over the store. A nil audit
// writer disables audit logging.
func NewLedger(store *Store, policy DuplicatePolicy, auditw audit.Writer) *Ledger {
	if auditw == nil {
		auditw = audit.NopWriter{}
	}
	return &Ledger{store: store, random: rand.Reader, policy: policy, audit: auditw}
}

// Show lists the revoked certificates recorded by the named CA, in
// stored order. A CA that never revoked anything has no CRL file; that
// is an empty list, not an error.
func (l *Ledger) Show(caName string) ([]x509.RevocationListEntry, error) {
	crl, err := l.store.LoadCRL(caName)
	if err != nil {
		if errors.Is(err, pki.ErrCRLNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return crl.RevokedCertificateEntries, nil
}

// Revoke adds the certificate issued under targetName to caName's CRL:
// the entry set is extended and re-sorted by serial, the CRL number
// advances by one (or starts at 1), timestamps are refreshed, and the
// list is re-signed with the CA's current key and rewritten in full.
func (l *Ledger) Revoke(caName, targetName, caPassphrase string) error {
	cert, err := l.store.LoadCert(targetName)
	if err != nil {
		return err
	}
	serial := cert.SerialNumber

	var entries []x509.RevocationListEntry
	number := big.NewInt(1)
	prior, err := l.store.LoadCRL(caName)
	switch {
	case err == nil:
		entries = prior.RevokedCertificateEntries
		// A foreign CRL may lack the cRLNumber extension; keep its
		// entries and restart the sequence rather than dereference nil.
		if prior.Number != nil {
			number = new(big.Int).Add(prior.Number, big.NewInt(1))
		}
	case errors.Is(err, pki.ErrCRLNotFound):
		// First revocation for this CA: fresh list, number 1.
	default:
		return err
	}

	if l.policy == RejectDuplicates {
		for _, entry := range entries {
			if entry.SerialNumber.Cmp(serial) == 0 {
				return pki.E("revoke", pki.KindConflict,
					fmt.Errorf("%w: %s", pki.ErrAlreadyRevoked, targetName))
			}
		}
	}

	now := time.Now().UTC()
	entries = append(entries, x509.RevocationListEntry{
		SerialNumber:   serial,
		RevocationTime: now,
		ReasonCode:     0, // unspecified
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SerialNumber.Cmp(entries[j].SerialNumber) < 0
	})

	ca, err := l.store.LoadIdentity(caName, []byte(caPassphrase))
	if err != nil {
		if pki.IsTrust(err) {
			_ = l.audit.Write(audit.NewEvent(audit.EventAuthFailed,
				audit.Object{Type: "ca", Subject: caName}, audit.ResultFailure))
		}
		return err
	}

	tmpl := &x509.RevocationList{
		Number:                    number,
		ThisUpdate:                now,
		NextUpdate:                now.Add(CRLValidity),
		RevokedCertificateEntries: entries,
	}

	der, err := x509.CreateRevocationList(l.random, tmpl, ca.Cert, ca.Key)
	if err != nil {
		return pki.E("revoke", pki.KindCrypto,
			fmt.Errorf("failed to sign CRL: %w", err))
	}

	if err := l.store.SaveCRL(caName, der); err != nil {
		return err
	}

	if err := l.audit.Write(audit.NewEvent(audit.EventCertRevoked, audit.Object{
		Type:    "certificate",
		Serial:  fmt.Sprintf("0x%X", serial),
		Subject: cert.Subject.String(),
		Issuer:  caName,
	}, audit.ResultSuccess)); err != nil {
		return err
	}
	return l.audit.Write(audit.NewEvent(audit.EventCRLUpdated, audit.Object{
		Type:   "crl",
		Issuer: caName,
		Path:   l.store.CRLPath(caName),
	}, audit.ResultSuccess))
}
