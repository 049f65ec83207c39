package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/qasn1/pkg/audit"
	"github.com/remiblancher/qasn1/pkg/cades"
	"github.com/remiblancher/qasn1/pkg/cms"
	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/profile"
)

var cmsCmd = &cobra.Command{
	Use:   "cms",
	Short: "CMS SignedData operations (RFC 5652)",
	Long: `CMS (Cryptographic Message Syntax) SignedData operations per RFC 5652.

This command provides:
  - sign:   Create a SignedData signature from a signing profile
  - verify: Verify every signer of a SignedData and its signature timestamps
  - info:   Show the structure of a SignedData

Examples:
  # Attached CAdES-BES signature (default profile)
  qasn1 cms sign --data file.txt --cert signer.crt --key signer.key -o file.p7s

  # Detached signature
  qasn1 cms sign --profile CAdES-BES-detached --data file.txt --cert signer.crt --key signer.key -o file.p7s

  # Verify a detached signature
  qasn1 cms verify file.p7s --data file.txt`,
}

var cmsSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Create a CMS SignedData signature",
	Long: `Create a CMS SignedData signature for a file.

The signing profile (--profile) selects the digest, the signed
attributes, the signature policy and whether the content is embedded.
It is a built-in profile name or a YAML file. --hash and --detached
override the profile.

When the profile has an hsm section the key is opened through PKCS#11
and --key is not needed.

Examples:
  # Attached signature (CAdES-BES)
  qasn1 cms sign --data file.txt --cert signer.crt --key signer.key -o file.p7s

  # Explicit policy (CAdES-EPES)
  qasn1 cms sign --profile CAdES-EPES --data file.txt --cert signer.crt --key signer.key -o file.p7s

  # Detached, SHA-512
  qasn1 cms sign --data file.txt --cert signer.crt --key signer.key --detached --hash sha512 -o file.p7s`,
	RunE: runCMSSign,
}

var cmsVerifyCmd = &cobra.Command{
	Use:   "verify <signature-file>",
	Short: "Verify a CMS SignedData signature",
	Long: `Verify every signer of a CMS SignedData.

For detached signatures, provide the original data with --data. Signer
certificates are taken from the envelope and from --cert. Signature
timestamps in the unsigned attributes are verified as well.

Only signatures are checked: certificate chains and validity periods
are not evaluated.

Examples:
  qasn1 cms verify file.p7s
  qasn1 cms verify file.p7s --data file.txt --cert signer.crt`,
	Args: cobra.ExactArgs(1),
	RunE: runCMSVerify,
}

var cmsInfoCmd = &cobra.Command{
	Use:   "info <signature-file>",
	Short: "Show the structure of a CMS SignedData",
	Args:  cobra.ExactArgs(1),
	RunE:  runCMSInfo,
}

var (
	cmsSignData     string
	cmsSignCert     string
	cmsSignKey      string
	cmsSignProfile  string
	cmsSignHash     string
	cmsSignDetached bool
	cmsSignChain    []string
	cmsSignOutput   string

	cmsVerifyData  string
	cmsVerifyCerts []string
)

func init() {
	cmsSignCmd.Flags().StringVar(&cmsSignData, "data", "", "File to sign (required)")
	cmsSignCmd.Flags().StringVar(&cmsSignCert, "cert", "", "Signer certificate (required)")
	cmsSignCmd.Flags().StringVar(&cmsSignKey, "key", "", "Signer private key (PEM)")
	cmsSignCmd.Flags().StringVarP(&cmsSignProfile, "profile", "p", "CAdES-BES", "Signing profile name or YAML file")
	cmsSignCmd.Flags().StringVar(&cmsSignHash, "hash", "", "Digest algorithm (overrides the profile)")
	cmsSignCmd.Flags().BoolVar(&cmsSignDetached, "detached", false, "Do not embed the content (overrides the profile)")
	cmsSignCmd.Flags().StringSliceVar(&cmsSignChain, "chain", nil, "Additional certificates to embed")
	cmsSignCmd.Flags().StringVarP(&cmsSignOutput, "out", "o", "", "Output file (required)")
	_ = cmsSignCmd.MarkFlagRequired("data")
	_ = cmsSignCmd.MarkFlagRequired("cert")
	_ = cmsSignCmd.MarkFlagRequired("out")

	cmsVerifyCmd.Flags().StringVar(&cmsVerifyData, "data", "", "Original data (detached signatures)")
	cmsVerifyCmd.Flags().StringSliceVar(&cmsVerifyCerts, "cert", nil, "Candidate signer or TSA certificates")

	cmsCmd.AddCommand(cmsSignCmd)
	cmsCmd.AddCommand(cmsVerifyCmd)
	cmsCmd.AddCommand(cmsInfoCmd)
}

func runCMSSign(cmd *cobra.Command, args []string) (err error) {
	prof, err := profile.Load(cmsSignProfile)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if cmd.Flags().Changed("hash") {
		prof.Hash = cmsSignHash
		prof.SignatureAlgorithm = ""
	}
	if cmd.Flags().Changed("detached") {
		prof.Detached = cmsSignDetached
	}
	if err := prof.Validate(); err != nil {
		return err
	}

	cert, err := loadCertificate(cmsSignCert)
	if err != nil {
		return err
	}
	subject, serial := subjectSerial(cert)
	var algorithm string
	defer func() {
		if aerr := audit.LogCMSSigned(cmsSignOutput, audit.Signer{Subject: subject, Serial: serial}, algorithm, prof.Name, prof.Detached, err); aerr != nil && err == nil {
			err = aerr
		}
	}()

	key, closeKey, err := prof.LoadSigner(cmsSignKey)
	if err != nil {
		return fmt.Errorf("failed to load private key: %w", err)
	}
	defer func() { _ = closeKey() }()

	data, err := os.ReadFile(cmsSignData)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	cfg, err := prof.SignerConfig(cert, key, time.Now())
	if err != nil {
		return err
	}
	chain, err := loadCertificates(cmsSignChain)
	if err != nil {
		return err
	}
	for _, c := range chain {
		cfg.ExtraCerts = append(cfg.ExtraCerts, c.Raw())
	}

	logger.Debug("signing",
		zap.String("profile", prof.Name),
		zap.String("hash", prof.Hash),
		zap.Bool("detached", prof.Detached),
		zap.Int("bytes", len(data)))

	der, err := cms.Sign(data, cfg)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	parsed, err := cms.ParseSignedData(der)
	if err != nil {
		return fmt.Errorf("failed to read back signature: %w", err)
	}
	algorithm = parsed.Signers[0].SignatureAlgorithm.Name()

	if err := writeOutput(cmsSignOutput, der, cmd.OutOrStdout()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signature created: %s\n", cmsSignOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "  Profile:   %s\n", prof.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  Signer:    %s\n", subject)
	fmt.Fprintf(cmd.OutOrStdout(), "  Algorithm: %s\n", algorithm)
	fmt.Fprintf(cmd.OutOrStdout(), "  Detached:  %t\n", prof.Detached)
	return nil
}

func runCMSVerify(cmd *cobra.Command, args []string) (err error) {
	var (
		contentType string
		signers     int
		valid       bool
	)
	defer func() {
		if aerr := audit.LogCMSVerified(args[0], contentType, signers, valid, err); aerr != nil && err == nil {
			err = aerr
		}
	}()

	der, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	der, err = decodeDER(der, false)
	if err != nil {
		return err
	}
	certs, err := loadCertificates(cmsVerifyCerts)
	if err != nil {
		return err
	}
	config := &cms.VerifyConfig{Certificates: certs}
	if cmsVerifyData != "" {
		if config.Data, err = os.ReadFile(cmsVerifyData); err != nil {
			return fmt.Errorf("failed to read data: %w", err)
		}
	}

	res, err := cms.Verify(der, config)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	contentType, signers, valid = res.ContentType, len(res.Signers), res.Valid()
	logger.Debug("verified envelope", zap.String("content_type", contentType), zap.Int("signers", signers), zap.Bool("valid", valid))

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Content type: %s\n", oid.NameOrOID(res.ContentType))
	fmt.Fprintf(w, "Detached:     %t\n", res.Detached)
	for _, s := range res.Signers {
		fmt.Fprintf(w, "Signer %d: %s\n", s.Index, s.Certificate.SubjectString())
		fmt.Fprintf(w, "  Algorithm:    %s\n", s.SignatureAlgorithm)
		if !s.SigningTime.IsZero() {
			fmt.Fprintf(w, "  Signing time: %s\n", s.SigningTime.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(w, "  Digest:       %s\n", status(s.DigestMatch))
		fmt.Fprintf(w, "  Signature:    %s\n", status(s.SignatureValid))

		tsts, err := cades.VerifySignatureTimeStamps(der, s.Index, certs)
		if err != nil {
			return err
		}
		for i, ts := range tsts {
			ok := ts.Verified && ts.HashMatch
			valid = valid && ok
			fmt.Fprintf(w, "  Timestamp %d: %s at %s by %s\n", i, status(ok),
				ts.Token.Info.GenTime.UTC().Format(time.RFC3339), ts.SignerCert.SubjectString())
			if !ts.TimeStampingEKU {
				logger.Warn("TSA certificate lacks the timeStamping extended key usage",
					zap.String("tsa", ts.SignerCert.SubjectString()))
			}
		}
	}

	if !valid {
		return fmt.Errorf("signature verification failed")
	}
	fmt.Fprintf(w, "Verification successful\n")
	return nil
}

func status(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAILED"
}

func runCMSInfo(cmd *cobra.Command, args []string) error {
	der, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	der, err = decodeDER(der, false)
	if err != nil {
		return err
	}
	sd, err := cms.ParseSignedData(der)
	if err != nil {
		return err
	}
	return printSignedData(cmd.OutOrStdout(), sd)
}

func printSignedData(w io.Writer, sd *cms.ParsedSignedData) error {
	fmt.Fprintf(w, "SignedData version %d\n", sd.Version)
	fmt.Fprintf(w, "  Content type: %s\n", oid.NameOrOID(sd.ContentType))
	if sd.Detached {
		fmt.Fprintf(w, "  Content:      detached\n")
	} else {
		fmt.Fprintf(w, "  Content:      %d bytes\n", len(sd.Content))
	}
	algs := make([]string, len(sd.DigestAlgorithms))
	for i, a := range sd.DigestAlgorithms {
		algs[i] = a.Name()
	}
	fmt.Fprintf(w, "  Digest algorithms: %s\n", strings.Join(algs, ", "))
	fmt.Fprintf(w, "  Certificates: %d\n", len(sd.Certificates))
	for _, c := range sd.Certificates {
		fmt.Fprintf(w, "    %s (serial %s)\n", c.SubjectString(), c.SerialHex())
	}
	if len(sd.CRLs) > 0 {
		fmt.Fprintf(w, "  CRLs: %d\n", len(sd.CRLs))
	}
	for i, si := range sd.Signers {
		fmt.Fprintf(w, "  Signer %d (version %d)\n", i, si.Version)
		fmt.Fprintf(w, "    Digest:    %s\n", si.DigestAlgorithm.Name())
		fmt.Fprintf(w, "    Signature: %s\n", si.SignatureAlgorithm.Name())
		if t, ok, err := si.SigningTime(); err != nil {
			return err
		} else if ok {
			fmt.Fprintf(w, "    Signing time: %s\n", t.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(w, "    Signed attributes:   %s\n", attributeNames(si.SignedAttrs))
		if len(si.UnsignedAttrs) > 0 {
			fmt.Fprintf(w, "    Unsigned attributes: %s\n", attributeNames(si.UnsignedAttrs))
		}
	}
	return nil
}

func attributeNames(attrs []*cms.Attribute) string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = oid.NameOrOID(a.Type)
	}
	return strings.Join(names, ", ")
}
