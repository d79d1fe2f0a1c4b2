// Command twoca is a two-cent certificate authority: it issues root,
// subordinate, server, client and web-server identities into a flat
// directory of PEM files, maintains one CRL per issuing CA, and
// generates Diffie-Hellman parameter files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nicolas314/twoca/internal/audit"
	"github.com/nicolas314/twoca/internal/config"
)

// Build-time variables (injected by the release pipeline).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	flagDir      string
	flagConfig   string
	flagAuditLog string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "twoca",
	Short: "Two-cent Certification Authority",
	Long: `twoca is a minimal certificate authority for people who find the big
CA toolkits too heavy. It runs against a single directory holding one
CA universe: {name}.crt / {name}.key per identity, {name}.crl per
issuing CA, dh{bits}.pem for DH parameters.

Identity fields are given as key=value pairs after the command:

  O     Organization, only honored for root (default: Home)
  CN    Common Name (default: the command name)
  C     2-letter country code like US, FR, UK (optional)
  ST    a state name (optional)
  L     a locality or city name (optional)
  days  certificate validity in days (default: 3650)
  ca    signing CA name (default: root)
  rsa   RSA key size in bits (default: 2048)
  ec    EC curve name, client certificates only (e.g. secp256r1)
  dns   add a DNS subject-alternative-name (repeatable)
  email add an email subject-alternative-name (repeatable)
  pass  encrypt the new private key with this passphrase
  capass passphrase of the signing CA's key, when encrypted

Examples:
  # Create a root CA then a server certificate signed by it
  twoca root CN=MyRoot O=ACME C=FR
  twoca server CN=host1 ca=MyRoot dns=host1.example.com

  # Issue a client certificate on an EC key
  twoca client CN=alice ca=MyRoot ec=secp256r1 email=alice@example.com

  # Revoke it and inspect the CRL
  twoca revoke alice ca=MyRoot
  twoca crl ca=MyRoot

  # Generate 2048-bit DH parameters into dh2048.pem
  twoca dh 2048`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".",
		"directory holding the CA universe")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"defaults file (default {dir}/"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&flagAuditLog, "audit-log", "",
		"append JSONL audit events to this file")
}

// loadDefaults resolves the defaults file: an explicit --config must
// exist, the implicit per-directory file is optional.
func loadDefaults() (config.Defaults, error) {
	if flagConfig != "" {
		return config.Load(flagConfig, true)
	}
	return config.Load(filepath.Join(flagDir, config.DefaultFile), false)
}

// openAudit returns the audit writer selected by --audit-log.
func openAudit() (audit.Writer, error) {
	if flagAuditLog == "" {
		return audit.NopWriter{}, nil
	}
	return audit.OpenFile(flagAuditLog)
}
