package ca

import (
	"crypto/ecdsa"
	"crypto/x509"
	"errors"
	"os"
	"testing"
	"time"

	twocrypto "github.com/nicolas314/twoca/internal/crypto"
	"github.com/nicolas314/twoca/internal/pki"
	"github.com/nicolas314/twoca/internal/profile"
)

// testKey keeps test key generation fast. Production defaults are larger.
var testKey = twocrypto.KeySpec{RSABits: 1024}

func testEngine(t *testing.T) (*Engine, *Store) {
	t.Helper()
	store := NewStore(t.TempDir())
	return NewEngine(store, nil), store
}

func issueRoot(t *testing.T, e *Engine, org string) *Identity {
	t.Helper()
	id, err := e.Issue(Request{
		Profile:      profile.RootCA,
		CommonName:   "root",
		Organization: org,
		Key:          testKey,
	})
	if err != nil {
		t.Fatalf("Issue(root) error = %v", err)
	}
	return id
}

func TestF_Issue_RootSelfSigned(t *testing.T) {
	e, store := testEngine(t)
	id := issueRoot(t, e, "Home")

	cert := id.Cert
	if cert.Subject.String() != cert.Issuer.String() {
		t.Errorf("subject %q != issuer %q", cert.Subject, cert.Issuer)
	}
	if err := cert.CheckSignatureFrom(cert); err != nil {
		t.Errorf("self-signature check failed: %v", err)
	}
	if !cert.IsCA {
		t.Error("root certificate is not a CA")
	}
	if got := cert.Subject.OrganizationalUnit; len(got) != 1 || got[0] != "Root" {
		t.Errorf("OU = %v, want [Root]", got)
	}
	if !twocrypto.IsBrandedSerial(cert.SerialNumber) {
		t.Errorf("serial %x is not branded", cert.SerialNumber)
	}

	for _, path := range []string{store.CertPath("root"), store.KeyPath("root")} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing artifact %s: %v", path, err)
		}
	}
}

func TestF_Issue_ServerSignedByRoot(t *testing.T) {
	e, _ := testEngine(t)
	root := issueRoot(t, e, "Home")

	id, err := e.Issue(Request{
		Profile:    profile.Server,
		CommonName: "server",
		SigningCA:  "root",
		Key:        testKey,
		SANs: []profile.SAN{
			{Type: profile.SANDNS, Value: "server.example.com"},
		},
	})
	if err != nil {
		t.Fatalf("Issue(server) error = %v", err)
	}

	cert := id.Cert
	if err := cert.CheckSignatureFrom(root.Cert); err != nil {
		t.Errorf("signature check against root failed: %v", err)
	}
	if err := cert.CheckSignatureFrom(cert); err == nil {
		t.Error("server certificate verifies against itself, should not")
	}
	if cert.IsCA {
		t.Error("server certificate is a CA")
	}
	if got := cert.Issuer.CommonName; got != "root" {
		t.Errorf("issuer CN = %q, want root", got)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "server.example.com" {
		t.Errorf("DNSNames = %v", cert.DNSNames)
	}
	if got := cert.Subject.OrganizationalUnit; len(got) != 1 || got[0] != "Server" {
		t.Errorf("OU = %v, want [Server]", got)
	}
}

func TestF_Issue_OrganizationCopiedFromIssuer(t *testing.T) {
	e, _ := testEngine(t)
	issueRoot(t, e, "Example Corp")

	id, err := e.Issue(Request{
		Profile:      profile.Client,
		CommonName:   "alice",
		Organization: "Something Else",
		SigningCA:    "root",
		Key:          testKey,
	})
	if err != nil {
		t.Fatalf("Issue(client) error = %v", err)
	}
	if got := id.Cert.Subject.Organization; len(got) != 1 || got[0] != "Example Corp" {
		t.Errorf("O = %v, want issuer's [Example Corp]", got)
	}
}

func TestF_Issue_SubCAChain(t *testing.T) {
	e, _ := testEngine(t)
	root := issueRoot(t, e, "Home")

	sub, err := e.Issue(Request{
		Profile:    profile.SubCA,
		CommonName: "sub",
		SigningCA:  "root",
		Key:        testKey,
	})
	if err != nil {
		t.Fatalf("Issue(sub) error = %v", err)
	}
	if err := sub.Cert.CheckSignatureFrom(root.Cert); err != nil {
		t.Errorf("sub CA signature check failed: %v", err)
	}
	if !sub.Cert.IsCA {
		t.Error("sub CA certificate is not a CA")
	}

	leaf, err := e.Issue(Request{
		Profile:    profile.Server,
		CommonName: "leaf",
		SigningCA:  "sub",
		Key:        testKey,
	})
	if err != nil {
		t.Fatalf("Issue(leaf) error = %v", err)
	}
	if err := leaf.Cert.CheckSignatureFrom(sub.Cert); err != nil {
		t.Errorf("leaf signature check against sub failed: %v", err)
	}
	if err := leaf.Cert.CheckSignatureFrom(root.Cert); err == nil {
		t.Error("leaf verifies against root, should only verify against sub")
	}
}

func TestF_Issue_ExistingIdentityConflict(t *testing.T) {
	e, store := testEngine(t)
	issueRoot(t, e, "Home")

	before, err := os.ReadFile(store.CertPath("root"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	_, err = e.Issue(Request{
		Profile:    profile.RootCA,
		CommonName: "root",
		Key:        testKey,
	})
	if err == nil {
		t.Fatal("Issue() expected conflict error")
	}
	if !pki.IsConflict(err) {
		t.Errorf("Issue() kind = %v, want conflict", pki.KindOf(err))
	}
	if !errors.Is(err, pki.ErrIdentityExists) {
		t.Errorf("Issue() error = %v, want ErrIdentityExists", err)
	}

	after, err := os.ReadFile(store.CertPath("root"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(before) != string(after) {
		t.Error("existing certificate was overwritten")
	}
}

func TestF_Issue_ECOnlyForClient(t *testing.T) {
	e, _ := testEngine(t)
	issueRoot(t, e, "Home")

	for _, p := range []profile.Profile{profile.RootCA, profile.SubCA, profile.Server, profile.WWW} {
		_, err := e.Issue(Request{
			Profile:    p,
			CommonName: "ec-" + p.String(),
			SigningCA:  "root",
			Key:        twocrypto.KeySpec{Curve: "prime256v1"},
		})
		if err == nil {
			t.Errorf("Issue(%v) with EC key expected error", p)
			continue
		}
		if !errors.Is(err, pki.ErrECNotAllowed) {
			t.Errorf("Issue(%v) error = %v, want ErrECNotAllowed", p, err)
		}
	}

	id, err := e.Issue(Request{
		Profile:    profile.Client,
		CommonName: "alice",
		SigningCA:  "root",
		Key:        twocrypto.KeySpec{Curve: "prime256v1"},
	})
	if err != nil {
		t.Fatalf("Issue(client, EC) error = %v", err)
	}
	if _, ok := id.Key.(*ecdsa.PrivateKey); !ok {
		t.Errorf("client key is %T, want *ecdsa.PrivateKey", id.Key)
	}
}

func TestF_Issue_EmptyCommonName(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.Issue(Request{Profile: profile.RootCA, Key: testKey})
	if err == nil {
		t.Fatal("Issue() expected error for empty CN")
	}
	if !errors.Is(err, pki.ErrEmptyCommonName) {
		t.Errorf("Issue() error = %v, want ErrEmptyCommonName", err)
	}
}

func TestF_Issue_MissingIssuer(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.Issue(Request{
		Profile:    profile.Server,
		CommonName: "server",
		SigningCA:  "root",
		Key:        testKey,
	})
	if err == nil {
		t.Fatal("Issue() expected error for missing signing CA")
	}
	if !pki.IsStore(err) {
		t.Errorf("Issue() kind = %v, want store", pki.KindOf(err))
	}
}

func TestF_Issue_TooManySANs(t *testing.T) {
	e, _ := testEngine(t)
	issueRoot(t, e, "Home")

	sans := make([]profile.SAN, MaxSANEntries+1)
	for i := range sans {
		sans[i] = profile.SAN{Type: profile.SANDNS, Value: "host.example.com"}
	}
	_, err := e.Issue(Request{
		Profile:    profile.Server,
		CommonName: "server",
		SigningCA:  "root",
		Key:        testKey,
		SANs:       sans,
	})
	if err == nil {
		t.Fatal("Issue() expected error for oversized SAN list")
	}
	if !pki.IsRequest(err) {
		t.Errorf("Issue() kind = %v, want request", pki.KindOf(err))
	}
}

func TestF_Issue_Validity(t *testing.T) {
	e, _ := testEngine(t)
	id, err := e.Issue(Request{
		Profile:    profile.RootCA,
		CommonName: "root",
		Days:       30,
		Key:        testKey,
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	lifetime := id.Cert.NotAfter.Sub(id.Cert.NotBefore)
	if want := 30 * 24 * time.Hour; lifetime != want {
		t.Errorf("lifetime = %v, want %v", lifetime, want)
	}
}

func TestF_Issue_WWWProfile(t *testing.T) {
	e, _ := testEngine(t)
	issueRoot(t, e, "Home")

	id, err := e.Issue(Request{
		Profile:    profile.WWW,
		CommonName: "www.example.com",
		SigningCA:  "root",
		Key:        testKey,
	})
	if err != nil {
		t.Fatalf("Issue(www) error = %v", err)
	}
	cert := id.Cert
	if got := cert.Subject.OrganizationalUnit; len(got) != 1 || got[0] != "Server" {
		t.Errorf("OU = %v, want [Server]", got)
	}
	hasServer, hasClient := false, false
	for _, eku := range cert.ExtKeyUsage {
		switch eku {
		case x509.ExtKeyUsageServerAuth:
			hasServer = true
		case x509.ExtKeyUsageClientAuth:
			hasClient = true
		}
	}
	if !hasServer || !hasClient {
		t.Errorf("ExtKeyUsage = %v, want both server and client auth", cert.ExtKeyUsage)
	}
}
