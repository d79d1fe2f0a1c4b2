package ca

import (
	"crypto/rand"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/nicolas314/twoca/internal/pki"
	"github.com/nicolas314/twoca/internal/profile"
)

func issueLeaf(t *testing.T, e *Engine, name string) *Identity {
	t.Helper()
	id, err := e.Issue(Request{
		Profile:    profile.Server,
		CommonName: name,
		SigningCA:  "root",
		Key:        testKey,
	})
	if err != nil {
		t.Fatalf("Issue(%s) error = %v", name, err)
	}
	return id
}

func TestF_Revoke_FirstRevocation(t *testing.T) {
	e, store := testEngine(t)
	root := issueRoot(t, e, "Home")
	leaf := issueLeaf(t, e, "server")

	ledger := NewLedger(store, AllowDuplicates, nil)
	if err := ledger.Revoke("root", "server", ""); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	crl, err := store.LoadCRL("root")
	if err != nil {
		t.Fatalf("LoadCRL() error = %v", err)
	}
	if crl.Number.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("CRL number = %v, want 1", crl.Number)
	}
	if len(crl.RevokedCertificateEntries) != 1 {
		t.Fatalf("got %d entries, want 1", len(crl.RevokedCertificateEntries))
	}
	entry := crl.RevokedCertificateEntries[0]
	if entry.SerialNumber.Cmp(leaf.Cert.SerialNumber) != 0 {
		t.Errorf("revoked serial = %x, want %x", entry.SerialNumber, leaf.Cert.SerialNumber)
	}
	if entry.ReasonCode != 0 {
		t.Errorf("reason code = %d, want 0 (unspecified)", entry.ReasonCode)
	}
	if err := crl.CheckSignatureFrom(root.Cert); err != nil {
		t.Errorf("CRL signature check failed: %v", err)
	}
	if !crl.NextUpdate.After(crl.ThisUpdate) {
		t.Error("nextUpdate is not after thisUpdate")
	}
}

func TestF_Revoke_NumberAdvances(t *testing.T) {
	e, store := testEngine(t)
	issueRoot(t, e, "Home")
	issueLeaf(t, e, "one")
	issueLeaf(t, e, "two")

	ledger := NewLedger(store, AllowDuplicates, nil)
	if err := ledger.Revoke("root", "one", ""); err != nil {
		t.Fatalf("Revoke(one) error = %v", err)
	}
	if err := ledger.Revoke("root", "two", ""); err != nil {
		t.Fatalf("Revoke(two) error = %v", err)
	}

	crl, err := store.LoadCRL("root")
	if err != nil {
		t.Fatalf("LoadCRL() error = %v", err)
	}
	if crl.Number.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("CRL number = %v, want 2", crl.Number)
	}
	if len(crl.RevokedCertificateEntries) != 2 {
		t.Errorf("got %d entries, want 2", len(crl.RevokedCertificateEntries))
	}
}

func TestF_Revoke_EntriesSortedBySerial(t *testing.T) {
	e, store := testEngine(t)
	issueRoot(t, e, "Home")
	for _, name := range []string{"a", "b", "c"} {
		issueLeaf(t, e, name)
	}

	ledger := NewLedger(store, AllowDuplicates, nil)
	for _, name := range []string{"c", "a", "b"} {
		if err := ledger.Revoke("root", name, ""); err != nil {
			t.Fatalf("Revoke(%s) error = %v", name, err)
		}
	}

	entries, err := ledger.Show("root")
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].SerialNumber.Cmp(entries[i].SerialNumber) > 0 {
			t.Errorf("entries not sorted: %x > %x",
				entries[i-1].SerialNumber, entries[i].SerialNumber)
		}
	}
}

func TestF_Revoke_DuplicatesAllowedByDefault(t *testing.T) {
	e, store := testEngine(t)
	issueRoot(t, e, "Home")
	leaf := issueLeaf(t, e, "server")

	ledger := NewLedger(store, AllowDuplicates, nil)
	if err := ledger.Revoke("root", "server", ""); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := ledger.Revoke("root", "server", ""); err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}

	entries, err := ledger.Show("root")
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 duplicates", len(entries))
	}
	for _, entry := range entries {
		if entry.SerialNumber.Cmp(leaf.Cert.SerialNumber) != 0 {
			t.Errorf("entry serial = %x, want %x", entry.SerialNumber, leaf.Cert.SerialNumber)
		}
	}
}

func TestF_Revoke_RejectDuplicates(t *testing.T) {
	e, store := testEngine(t)
	issueRoot(t, e, "Home")
	issueLeaf(t, e, "server")

	ledger := NewLedger(store, RejectDuplicates, nil)
	if err := ledger.Revoke("root", "server", ""); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	err := ledger.Revoke("root", "server", "")
	if err == nil {
		t.Fatal("second Revoke() expected error")
	}
	if !errors.Is(err, pki.ErrAlreadyRevoked) {
		t.Errorf("Revoke() error = %v, want ErrAlreadyRevoked", err)
	}
	if !pki.IsConflict(err) {
		t.Errorf("Revoke() kind = %v, want conflict", pki.KindOf(err))
	}

	entries, err := ledger.Show("root")
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

func TestF_Revoke_ForeignCRLWithoutNumber(t *testing.T) {
	e, store := testEngine(t)
	root := issueRoot(t, e, "Home")
	leaf := issueLeaf(t, e, "server")

	// CreateCRL emits no cRLNumber extension, like a CRL produced by
	// another tool.
	der, err := root.Cert.CreateCRL(rand.Reader, root.Key, nil,
		time.Now(), time.Now().Add(time.Hour)) //nolint:staticcheck // Deprecated but still used
	if err != nil {
		t.Fatalf("CreateCRL() error = %v", err)
	}
	if err := store.SaveCRL("root", der); err != nil {
		t.Fatalf("SaveCRL() error = %v", err)
	}

	ledger := NewLedger(store, AllowDuplicates, nil)
	if err := ledger.Revoke("root", "server", ""); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	crl, err := store.LoadCRL("root")
	if err != nil {
		t.Fatalf("LoadCRL() error = %v", err)
	}
	if crl.Number.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("CRL number = %v, want restart at 1", crl.Number)
	}
	if len(crl.RevokedCertificateEntries) != 1 {
		t.Fatalf("got %d entries, want 1", len(crl.RevokedCertificateEntries))
	}
	if got := crl.RevokedCertificateEntries[0].SerialNumber; got.Cmp(leaf.Cert.SerialNumber) != 0 {
		t.Errorf("revoked serial = %x, want %x", got, leaf.Cert.SerialNumber)
	}
}

func TestF_Revoke_UnknownTarget(t *testing.T) {
	e, store := testEngine(t)
	issueRoot(t, e, "Home")

	ledger := NewLedger(store, AllowDuplicates, nil)
	err := ledger.Revoke("root", "ghost", "")
	if err == nil {
		t.Fatal("Revoke() expected error for unknown target")
	}
	if !errors.Is(err, pki.ErrCertNotFound) {
		t.Errorf("Revoke() error = %v, want ErrCertNotFound", err)
	}
}

func TestF_Show_NoCRLIsEmptyList(t *testing.T) {
	e, store := testEngine(t)
	issueRoot(t, e, "Home")

	ledger := NewLedger(store, AllowDuplicates, nil)
	entries, err := ledger.Show("root")
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if entries != nil {
		t.Errorf("Show() = %v, want empty list", entries)
	}
}
