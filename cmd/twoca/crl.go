package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicolas314/twoca/internal/ca"
)

var crlCmd = &cobra.Command{
	Use:   "crl [ca=NAME]",
	Short: "Show the revoked-certificate list for a CA",
	Args:  cobra.ArbitraryArgs,
	RunE:  runCRLShow,
}

var revokeCmd = &cobra.Command{
	Use:   "revoke NAME [ca=NAME]",
	Short: "Revoke the certificate previously issued as NAME",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRevoke,
}

func init() {
	rootCmd.AddCommand(crlCmd, revokeCmd)
}

func runCRLShow(cmd *cobra.Command, args []string) error {
	defaults, err := loadDefaults()
	if err != nil {
		return err
	}
	caName, _, err := caNameFromArgs(args, defaults)
	if err != nil {
		return err
	}

	ledger := ca.NewLedger(ca.NewStore(flagDir), ca.AllowDuplicates, nil)
	entries, err := ledger.Show(caName)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Printf("No revoked certificates for %s\n", caName)
		return nil
	}

	fmt.Println("-- Revoked certificates found in CRL")
	for _, entry := range entries {
		fmt.Printf("serial: 0x%X\n  date: %s\n\n",
			entry.SerialNumber, entry.RevocationTime.UTC().Format("Jan 2 15:04:05 2006 MST"))
	}
	return nil
}

func runRevoke(cmd *cobra.Command, args []string) error {
	defaults, err := loadDefaults()
	if err != nil {
		return err
	}
	target := args[0]
	caName, caPass, err := caNameFromArgs(args[1:], defaults)
	if err != nil {
		return err
	}

	auditw, err := openAudit()
	if err != nil {
		return err
	}
	defer func() { _ = auditw.Close() }()

	ledger := ca.NewLedger(ca.NewStore(flagDir), ca.AllowDuplicates, auditw)
	if err := ledger.Revoke(caName, target, caPass); err != nil {
		return err
	}

	fmt.Printf("Revoked %s, CRL saved to %s.crl\n", target, caName)
	return nil
}
