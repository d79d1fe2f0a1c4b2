package main

import (
	crand "crypto/rand"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nicolas314/twoca/internal/audit"
	"github.com/nicolas314/twoca/internal/ca"
	twocrypto "github.com/nicolas314/twoca/internal/crypto"
	"github.com/nicolas314/twoca/internal/pki"
)

var dhCmd = &cobra.Command{
	Use:   "dh [BITS]",
	Short: "Generate Diffie-Hellman parameters",
	Long: `Generate Diffie-Hellman group parameters with a safe prime of the
requested size (default 2048 bits) and write them to dhBITS.pem in the
working directory. Finding a safe prime can take minutes for large sizes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDH,
}

func init() {
	rootCmd.AddCommand(dhCmd)
}

func runDH(cmd *cobra.Command, args []string) error {
	bits := twocrypto.DefaultDHBits
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return pki.E("dh", pki.KindRequest,
				fmt.Errorf("invalid DH size %q", args[0]))
		}
		bits = n
	}

	auditw, err := openAudit()
	if err != nil {
		return err
	}
	defer func() { _ = auditw.Close() }()

	fmt.Printf("Generating DH parameters (%d bits), this can take a while...\n", bits)
	params, err := twocrypto.GenerateDHParams(crand.Reader, bits)
	if err != nil {
		return err
	}
	pemData, err := params.MarshalPEM()
	if err != nil {
		return err
	}

	store := ca.NewStore(flagDir)
	if err := store.SaveDHParams(bits, pemData); err != nil {
		return err
	}

	event := audit.NewEvent(audit.EventDHGenerated, audit.Object{
		Type: "dhparams",
		Path: store.DHPath(bits),
	}, audit.ResultSuccess)
	if err := auditw.Write(event); err != nil {
		return err
	}

	fmt.Printf("Saved %s\n", store.DHPath(bits))
	return nil
}
