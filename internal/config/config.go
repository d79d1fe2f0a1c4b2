// Package config loads the optional defaults file that seeds issuance
// requests before key=value arguments are applied.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the defaults file looked up in the CA directory when
// --config is not given.
const DefaultFile = "twoca.yaml"

// Defaults holds the values applied to every request unless overridden
// on the command line.
type Defaults struct {
	// Organization is only used for root CAs; other profiles inherit
	// the issuer's organization.
	Organization string `yaml:"organization"`

	// Country is an optional two-letter country code.
	Country string `yaml:"country"`

	// Days is the certificate validity period.
	Days int `yaml:"days"`

	// RSABits is the default RSA modulus size.
	RSABits int `yaml:"rsa"`

	// SigningCA is the default signing CA name.
	SigningCA string `yaml:"ca"`
}

// Builtin returns the hard-wired defaults used when no file overrides
// them.
func Builtin() Defaults {
	return Defaults{
		Organization: "Home",
		Days:         3650,
		RSABits:      2048,
		SigningCA:    "root",
	}
}

// Load reads a defaults file and merges it over the builtin values.
// When required is false a missing file is not an error and the builtin
// defaults are returned unchanged.
func Load(path string, required bool) (Defaults, error) {
	d := Builtin()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return d, nil
		}
		return d, fmt.Errorf("failed to read config file: %w", err)
	}

	var file Defaults
	if err := yaml.Unmarshal(data, &file); err != nil {
		return d, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if file.Organization != "" {
		d.Organization = file.Organization
	}
	if file.Country != "" {
		d.Country = file.Country
	}
	if file.Days > 0 {
		d.Days = file.Days
	}
	if file.RSABits > 0 {
		d.RSABits = file.RSABits
	}
	if file.SigningCA != "" {
		d.SigningCA = file.SigningCA
	}
	return d, nil
}
