package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nicolas314/twoca/internal/ca"
	"github.com/nicolas314/twoca/internal/config"
	twocrypto "github.com/nicolas314/twoca/internal/crypto"
	"github.com/nicolas314/twoca/internal/pki"
	"github.com/nicolas314/twoca/internal/profile"
)

// buildRequest turns the key=value arguments of an issue command into a
// certificate request, seeded with the configured defaults. Unknown
// keys are request errors, as is supplying both rsa= and ec=.
func buildRequest(p profile.Profile, args []string, d config.Defaults) (ca.Request, error) {
	req := ca.Request{
		Profile:      p,
		Organization: d.Organization,
		Country:      d.Country,
		Days:         d.Days,
		SigningCA:    d.SigningCA,
	}

	rsaBits := d.RSABits
	var rsaSet, ecSet bool
	var curve string

	for _, arg := range args {
		key, val, err := splitPair(arg)
		if err != nil {
			return req, err
		}

		switch key {
		case "CN":
			req.CommonName = val
		case "O":
			req.Organization = val
		case "C":
			req.Country = val
		case "ST":
			req.State = val
		case "L":
			req.Locality = val
		case "days":
			days, err := strconv.Atoi(val)
			if err != nil || days <= 0 {
				return req, pki.E("request", pki.KindRequest,
					fmt.Errorf("invalid days value: %q", val))
			}
			req.Days = days
		case "rsa":
			bits, err := strconv.Atoi(val)
			if err != nil || bits <= 0 {
				return req, pki.E("request", pki.KindRequest,
					fmt.Errorf("invalid RSA key size: %q", val))
			}
			rsaBits = bits
			rsaSet = true
		case "ec":
			curve = val
			ecSet = true
		case "ca":
			req.SigningCA = val
		case "dns":
			req.SANs = append(req.SANs, profile.SAN{Type: profile.SANDNS, Value: val})
		case "email":
			req.SANs = append(req.SANs, profile.SAN{Type: profile.SANEmail, Value: val})
		case "pass":
			req.Passphrase = val
		case "capass":
			req.IssuerPassphrase = val
		default:
			return req, pki.E("request", pki.KindRequest,
				fmt.Errorf("%w: [%s]", pki.ErrUnsupportedField, key))
		}
	}

	if rsaSet && ecSet {
		return req, pki.E("request", pki.KindRequest,
			fmt.Errorf("rsa= and ec= are mutually exclusive"))
	}
	if ecSet {
		req.Key = twocrypto.KeySpec{Curve: curve}
	} else {
		req.Key = twocrypto.KeySpec{RSABits: rsaBits}
	}

	if req.CommonName == "" {
		req.CommonName = p.DefaultCommonName()
	}

	return req, nil
}

// splitPair parses one key=value argument.
func splitPair(arg string) (string, string, error) {
	key, val, ok := strings.Cut(arg, "=")
	if !ok || key == "" || val == "" {
		return "", "", pki.E("request", pki.KindRequest,
			fmt.Errorf("expected key=value, got %q", arg))
	}
	return key, val, nil
}

// caNameFromArgs extracts the ca= argument used by the crl and revoke
// commands, along with the optional capass= value.
func caNameFromArgs(args []string, d config.Defaults) (name, passphrase string, err error) {
	name = d.SigningCA
	for _, arg := range args {
		key, val, err := splitPair(arg)
		if err != nil {
			return "", "", err
		}
		switch key {
		case "ca":
			name = val
		case "capass":
			passphrase = val
		default:
			return "", "", pki.E("request", pki.KindRequest,
				fmt.Errorf("%w: [%s]", pki.ErrUnsupportedField, key))
		}
	}
	return name, passphrase, nil
}
