package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicolas314/twoca/internal/ca"
	"github.com/nicolas314/twoca/internal/profile"
)

var issueRootCmd = &cobra.Command{
	Use:   "root [key=value]...",
	Short: "Issue a self-signed root CA",
	Args:  cobra.ArbitraryArgs,
	RunE:  runIssue(profile.RootCA),
}

var issueSubCmd = &cobra.Command{
	Use:   "sub [key=value]...",
	Short: "Issue a subordinate CA signed by ca=NAME",
	Args:  cobra.ArbitraryArgs,
	RunE:  runIssue(profile.SubCA),
}

var issueServerCmd = &cobra.Command{
	Use:   "server [key=value]...",
	Short: "Issue a TLS server certificate",
	Args:  cobra.ArbitraryArgs,
	RunE:  runIssue(profile.Server),
}

var issueClientCmd = &cobra.Command{
	Use:   "client [key=value]...",
	Short: "Issue a TLS client certificate (rsa= or ec= key)",
	Args:  cobra.ArbitraryArgs,
	RunE:  runIssue(profile.Client),
}

var issueWWWCmd = &cobra.Command{
	Use:   "www [key=value]...",
	Short: "Issue a web-server certificate for both server and client auth",
	Args:  cobra.ArbitraryArgs,
	RunE:  runIssue(profile.WWW),
}

func init() {
	rootCmd.AddCommand(issueRootCmd, issueSubCmd, issueServerCmd,
		issueClientCmd, issueWWWCmd)
}

// runIssue builds the shared RunE for the five issue commands.
func runIssue(p profile.Profile) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defaults, err := loadDefaults()
		if err != nil {
			return err
		}

		req, err := buildRequest(p, args, defaults)
		if err != nil {
			return err
		}

		auditw, err := openAudit()
		if err != nil {
			return err
		}
		defer func() { _ = auditw.Close() }()

		engine := ca.NewEngine(ca.NewStore(flagDir), auditw)

		// Validate before announcing anything: a conflict or a bad
		// request must not be preceded by a progress line.
		if err := engine.Validate(req); err != nil {
			return err
		}

		// Key generation dominates the run time for large RSA sizes,
		// so say what is happening before going quiet.
		fmt.Printf("Generating %s\n", req.Key)

		id, err := engine.Issue(req)
		if err != nil {
			return err
		}

		fmt.Printf("Saved %s.crt and %s.key (serial 0x%X)\n",
			req.CommonName, req.CommonName, id.Cert.SerialNumber)
		return nil
	}
}
