// Command qasn1 inspects and builds DER structures, X.509 certificates and
// CMS/CAdES signatures.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/qasn1/pkg/audit"
)

// Build-time variables
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	auditLogPath string
	verbose      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		_ = audit.Close()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qasn1",
	Short: "DER, X.509 and CMS toolkit",
	Long: `qasn1 decodes and builds ASN.1 DER structures and works with the
objects built on top of them: X.509 certificates, distinguished names,
CMS SignedData envelopes, CAdES attributes and RFC 3161 timestamp tokens.

Examples:
  # Dump any DER file as a tree
  qasn1 asn1 dump cert.der

  # Show a certificate as JSON
  qasn1 cert info cert.pem --format json

  # Sign a file with the CAdES-BES profile
  qasn1 cms sign --data file.txt --cert signer.crt --key signer.key --out file.p7s

  # Add a signature timestamp from a local TSA key
  qasn1 cades timestamp file.p7s --tsa-cert tsa.crt --tsa-key tsa.key --out file-t.p7s`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(verbose, cmd.ErrOrStderr())

		if auditLogPath == "" {
			auditLogPath = os.Getenv("QASN1_AUDIT_LOG")
		}
		if auditLogPath != "" {
			if err := audit.InitFile(auditLogPath); err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
			logger.Debug("audit log enabled", zap.String("path", auditLogPath))
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.Sync()
		return audit.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set QASN1_AUDIT_LOG env var)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Print diagnostic output to stderr")

	rootCmd.AddCommand(asn1Cmd)    // qasn1 asn1 ...
	rootCmd.AddCommand(dnCmd)      // qasn1 dn ...
	rootCmd.AddCommand(certCmd)    // qasn1 cert ...
	rootCmd.AddCommand(cmsCmd)     // qasn1 cms ...
	rootCmd.AddCommand(cadesCmd)   // qasn1 cades ...
	rootCmd.AddCommand(tspCmd)     // qasn1 tsp ...
	rootCmd.AddCommand(profileCmd) // qasn1 profile ...
}
