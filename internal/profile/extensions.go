package profile

import (
	"crypto/x509"
	"fmt"

	"github.com/nicolas314/twoca/internal/pki"
)

// SANType tags a subject-alternative-name entry.
type SANType string

const (
	SANDNS   SANType = "dns"
	SANEmail SANType = "email"
)

// SAN is a single subject-alternative-name entry. Entries keep the order
// in which the caller supplied them.
type SAN struct {
	Type  SANType
	Value string
}

// extensionSet is the declarative extension policy for one profile.
// Criticality follows crypto/x509 defaults, which match RFC 5280:
// basic constraints and key usage critical, extended key usage not.
type extensionSet struct {
	ca          bool
	keyUsage    x509.KeyUsage
	extKeyUsage []x509.ExtKeyUsage
	allowSAN    bool
}

// policyTable maps each profile to its extension set.
var policyTable = map[Profile]extensionSet{
	RootCA: {
		ca:       true,
		keyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	},
	SubCA: {
		ca:       true,
		keyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	},
	Server: {
		keyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		extKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		allowSAN:    true,
	},
	Client: {
		keyUsage:    x509.KeyUsageDigitalSignature,
		extKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		allowSAN:    true,
	},
	WWW: {
		keyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		extKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		allowSAN:    true,
	},
}

// Apply writes the profile's extension set onto the certificate template.
// SAN entries are only attached when the request supplied at least one
// and the profile is an end-entity profile; CA profiles never carry SANs.
// An unknown profile produces a request error and leaves the template
// untouched.
func Apply(p Profile, tmpl *x509.Certificate, sans []SAN) error {
	set, ok := policyTable[p]
	if !ok {
		return pki.E("profile", pki.KindRequest,
			fmt.Errorf("%w: %d", pki.ErrUnknownProfile, int(p)))
	}

	tmpl.BasicConstraintsValid = true
	tmpl.IsCA = set.ca
	tmpl.KeyUsage = set.keyUsage
	tmpl.ExtKeyUsage = set.extKeyUsage

	if set.allowSAN && len(sans) > 0 {
		for _, san := range sans {
			switch san.Type {
			case SANDNS:
				tmpl.DNSNames = append(tmpl.DNSNames, san.Value)
			case SANEmail:
				tmpl.EmailAddresses = append(tmpl.EmailAddresses, san.Value)
			default:
				return pki.E("profile", pki.KindRequest,
					fmt.Errorf("unknown SAN type: %q", san.Type))
			}
		}
	}

	return nil
}
