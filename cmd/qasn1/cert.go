package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/qasn1/pkg/audit"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Inspect X.509 certificates",
	Long: `Inspect X.509 certificates.

This command provides:
  - info:   Show certificate fields and extensions
  - verify: Check a certificate signature against its issuer`,
}

var certInfoCmd = &cobra.Command{
	Use:   "info <cert-file>",
	Short: "Show certificate fields and extensions",
	Long: `Show certificate fields and extensions.

Formats:
  text  Fixed-layout report (default)
  json  Flat JSON summary
  cbor  Canonical CBOR summary (binary, use --out)

Examples:
  qasn1 cert info server.crt
  qasn1 cert info server.crt --format json --unicode
  qasn1 cert info server.crt --format cbor --out server.cbor`,
	Args: cobra.ExactArgs(1),
	RunE: runCertInfo,
}

var certVerifyCmd = &cobra.Command{
	Use:   "verify <cert-file>",
	Short: "Check a certificate signature",
	Long: `Check the signature of a certificate with its issuer's public key.

Without --issuer the certificate is treated as self-signed. Only the
signature is checked: validity dates and chains are not evaluated.

Examples:
  qasn1 cert verify server.crt --issuer ca.crt
  qasn1 cert verify root.crt`,
	Args: cobra.ExactArgs(1),
	RunE: runCertVerify,
}

var (
	certInfoFormat  string
	certInfoUnicode bool
	certInfoOut     string

	certVerifyIssuer string
)

func init() {
	certInfoCmd.Flags().StringVarP(&certInfoFormat, "format", "f", "text", "Output format (text, json, cbor)")
	certInfoCmd.Flags().BoolVar(&certInfoUnicode, "unicode", false, "Render IDNA DNS names in Unicode")
	certInfoCmd.Flags().StringVarP(&certInfoOut, "out", "o", "", "Output file (default: stdout)")

	certVerifyCmd.Flags().StringVar(&certVerifyIssuer, "issuer", "", "Issuer certificate (default: self-signed)")

	certCmd.AddCommand(certInfoCmd)
	certCmd.AddCommand(certVerifyCmd)
}

func runCertInfo(cmd *cobra.Command, args []string) error {
	cert, err := loadCertificate(args[0])
	if err != nil {
		return err
	}
	logger.Debug("certificate loaded", zap.String("subject", cert.SubjectString()), zap.String("format", certInfoFormat))

	var out []byte
	switch certInfoFormat {
	case "text":
		text, err := cert.Info()
		if err != nil {
			return err
		}
		if certInfoUnicode {
			text += unicodeSANs(cert)
		}
		out = []byte(text)
	case "json", "cbor":
		s, err := cert.Summary(x509cert.SummaryOptions{Unicode: certInfoUnicode})
		if err != nil {
			return err
		}
		if certInfoFormat == "json" {
			out, err = s.JSON()
			out = append(out, '\n')
		} else {
			out, err = s.CBOR()
		}
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (use text, json or cbor)", certInfoFormat)
	}
	return writeOutput(certInfoOut, out, cmd.OutOrStdout())
}

// unicodeSANs lists the subject alternative names with DNS labels
// converted from IDNA.
func unicodeSANs(cert *x509cert.Certificate) string {
	sans, err := cert.SubjectAltNames()
	if err != nil || len(sans) == 0 {
		return ""
	}
	names := make([]string, len(sans))
	for i, g := range sans {
		names[i] = g.Unicode()
	}
	return "subject alt names (unicode): " + strings.Join(names, ", ") + "\n"
}

func runCertVerify(cmd *cobra.Command, args []string) (err error) {
	cert, err := loadCertificate(args[0])
	if err != nil {
		return err
	}
	subject, serial := subjectSerial(cert)
	var valid bool
	defer func() {
		if aerr := audit.LogCertVerified(args[0], audit.Signer{Subject: subject, Serial: serial}, cert.SignatureAlgorithm(), valid, err); aerr != nil && err == nil {
			err = aerr
		}
	}()

	issuer := cert
	if certVerifyIssuer != "" {
		if issuer, err = loadCertificate(certVerifyIssuer); err != nil {
			return err
		}
	}
	logger.Debug("verifying certificate", zap.String("subject", subject), zap.String("issuer", issuer.SubjectString()))

	valid, err = cert.VerifyIssuedBy(issuer)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if !valid {
		return fmt.Errorf("signature mismatch: %s was not signed by %s", subject, issuer.SubjectString())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signature OK\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Subject:   %s\n", subject)
	fmt.Fprintf(cmd.OutOrStdout(), "  Issuer:    %s\n", issuer.SubjectString())
	fmt.Fprintf(cmd.OutOrStdout(), "  Algorithm: %s\n", cert.SignatureAlgorithm())
	return nil
}
