// Package profile defines the certificate profiles twoca can issue and
// the X.509 extension policy attached to each of them.
//
// The profile set is closed: root CA, subordinate CA, server, client and
// www (dual server/client auth). A profile determines the derived
// organizational unit, the signer rules and the extension table. There is
// no user-defined profile mechanism.
package profile

import (
	"fmt"

	"github.com/nicolas314/twoca/internal/pki"
)

// Profile identifies a certificate profile.
type Profile int

const (
	// Unknown is the zero value; issuing with it is a request error.
	Unknown Profile = iota

	// RootCA is a self-signed certificate authority.
	RootCA

	// SubCA is a subordinate authority signed by a parent CA.
	SubCA

	// Server is a TLS server certificate.
	Server

	// Client is a TLS client certificate. This is the only profile that
	// accepts an elliptic-curve key.
	Client

	// WWW is a web-server certificate valid for both server and client
	// authentication.
	WWW
)

// profileInfo holds the per-profile naming metadata.
type profileInfo struct {
	verb    string // CLI command and default common name
	orgUnit string // derived OU, never user-settable
	isCA    bool
}

var profiles = map[Profile]profileInfo{
	RootCA: {verb: "root", orgUnit: "Root", isCA: true},
	SubCA:  {verb: "sub", orgUnit: "Sub", isCA: true},
	Server: {verb: "server", orgUnit: "Server"},
	Client: {verb: "client", orgUnit: "Client"},
	WWW:    {verb: "www", orgUnit: "Server"},
}

// Parse maps a CLI verb to its profile.
func Parse(s string) (Profile, error) {
	for p, info := range profiles {
		if info.verb == s {
			return p, nil
		}
	}
	return Unknown, pki.E("profile", pki.KindRequest,
		fmt.Errorf("%w: %q", pki.ErrUnknownProfile, s))
}

// String returns the CLI verb for the profile.
func (p Profile) String() string {
	if info, ok := profiles[p]; ok {
		return info.verb
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// Valid reports whether p is a member of the closed profile set.
func (p Profile) Valid() bool {
	_, ok := profiles[p]
	return ok
}

// OrgUnit returns the organizational unit derived from the profile.
// The OU is fixed per profile and ignores any caller-supplied value.
func (p Profile) OrgUnit() string {
	return profiles[p].orgUnit
}

// IsCA reports whether the profile produces a certificate authority.
func (p Profile) IsCA() bool {
	return profiles[p].isCA
}

// SelfSigned reports whether the profile signs with its own key.
func (p Profile) SelfSigned() bool {
	return p == RootCA
}

// AllowsECKey reports whether the profile accepts an elliptic-curve key
// specification. Only client certificates may use EC keys.
func (p Profile) AllowsECKey() bool {
	return p == Client
}

// DefaultCommonName returns the common name used when the request does
// not supply one: the profile's own verb.
func (p Profile) DefaultCommonName() string {
	return profiles[p].verb
}
