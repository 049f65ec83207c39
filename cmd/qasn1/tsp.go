package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/qasn1/pkg/audit"
	"github.com/remiblancher/qasn1/pkg/cms"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/tsp"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// defaultTSAPolicy is the policy OID stamped into tokens when --policy is
// not given.
const defaultTSAPolicy = "1.3.6.1.4.1.99999.2.1"

var tspCmd = &cobra.Command{
	Use:   "tsp",
	Short: "Timestamp tokens (RFC 3161)",
	Long: `RFC 3161 timestamp tokens issued with a local TSA key.

This command provides:
  - token:  Timestamp a file and write the token
  - verify: Verify a token and, optionally, the data it covers`,
}

var tspTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Timestamp a file with a local TSA key",
	Long: `Create an RFC 3161 timestamp token over the digest of a file.

The token is a CMS SignedData holding a TSTInfo, signed with the TSA
certificate and key.

Examples:
  qasn1 tsp token --data file.txt --tsa-cert tsa.crt --tsa-key tsa.key -o file.tsr
  qasn1 tsp token --data file.txt --tsa-cert tsa.crt --tsa-key tsa.key --hash sha512 --accuracy 1 -o file.tsr`,
	RunE: runTSPToken,
}

var tspVerifyCmd = &cobra.Command{
	Use:   "verify <token-file>",
	Short: "Verify a timestamp token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTSPVerify,
}

// tsaFlags are shared by every command that issues tokens.
type tsaFlags struct {
	cert     string
	key      string
	policy   string
	hash     string
	accuracy int
	ordering bool
}

var (
	tspTokenTSA    tsaFlags
	tspTokenData   string
	tspTokenOutput string

	tspVerifyData  string
	tspVerifyCerts []string
)

func (f *tsaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cert, "tsa-cert", "", "TSA certificate (required)")
	cmd.Flags().StringVar(&f.key, "tsa-key", "", "TSA private key (required)")
	cmd.Flags().StringVar(&f.policy, "policy", defaultTSAPolicy, "TSA policy OID")
	cmd.Flags().StringVar(&f.hash, "hash", "sha256", "Message imprint digest algorithm")
	cmd.Flags().IntVar(&f.accuracy, "accuracy", 0, "Accuracy in seconds (0 to omit)")
	cmd.Flags().BoolVar(&f.ordering, "ordering", false, "Set the ordering flag")
	_ = cmd.MarkFlagRequired("tsa-cert")
	_ = cmd.MarkFlagRequired("tsa-key")
}

// load reads the TSA certificate and key and prepares the token
// template. The message imprint is left for the caller.
func (f *tsaFlags) load() (tsp.TSTInfo, *cms.SignerConfig, error) {
	cert, err := loadCertificate(f.cert)
	if err != nil {
		return tsp.TSTInfo{}, nil, err
	}
	key, err := qcrypto.LoadPrivateKey(f.key)
	if err != nil {
		return tsp.TSTInfo{}, nil, fmt.Errorf("failed to load TSA key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return tsp.TSTInfo{}, nil, err
	}
	info := tsp.TSTInfo{
		Policy:         f.policy,
		MessageImprint: tsp.MessageImprint{HashAlgorithm: f.hash},
		SerialNumber:   serial,
		GenTime:        time.Now().UTC(),
		GenTimeMillis:  true,
		Accuracy:       tsp.Accuracy{Seconds: f.accuracy},
		Ordering:       f.ordering,
	}
	if info.TSAName, err = tsaName(cert); err != nil {
		return tsp.TSTInfo{}, nil, err
	}
	cfg := &cms.SignerConfig{Certificate: cert, Signer: key, IncludeCerts: true}
	return info, cfg, nil
}

func tsaName(cert *x509cert.Certificate) ([]byte, error) {
	name, err := cert.Subject().Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode TSA name: %w", err)
	}
	return name, nil
}

func init() {
	tspTokenTSA.register(tspTokenCmd)
	tspTokenCmd.Flags().StringVar(&tspTokenData, "data", "", "File to timestamp (required)")
	tspTokenCmd.Flags().StringVarP(&tspTokenOutput, "out", "o", "", "Output token file (required)")
	_ = tspTokenCmd.MarkFlagRequired("data")
	_ = tspTokenCmd.MarkFlagRequired("out")

	tspVerifyCmd.Flags().StringVar(&tspVerifyData, "data", "", "Timestamped data")
	tspVerifyCmd.Flags().StringSliceVar(&tspVerifyCerts, "cert", nil, "Candidate TSA certificates")

	tspCmd.AddCommand(tspTokenCmd)
	tspCmd.AddCommand(tspVerifyCmd)
}

func runTSPToken(cmd *cobra.Command, args []string) (err error) {
	var info tsp.TSTInfo
	defer func() {
		if aerr := audit.LogTokenIssued(tspTokenOutput, hex.EncodeToString(info.MessageImprint.HashedMessage), tspTokenTSA.policy, info.GenTime, err); aerr != nil && err == nil {
			err = aerr
		}
	}()

	data, err := os.ReadFile(tspTokenData)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	info, cfg, err := tspTokenTSA.load()
	if err != nil {
		return err
	}
	if info.MessageImprint, err = tsp.NewMessageImprint(tspTokenTSA.hash, data); err != nil {
		return err
	}
	logger.Debug("issuing token", zap.String("policy", info.Policy), zap.String("serial", info.SerialNumber.Text(16)))

	token, err := tsp.NewToken(&info, cfg)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	if err := writeOutput(tspTokenOutput, token, cmd.OutOrStdout()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Timestamp token created: %s\n", tspTokenOutput)
	printTSTInfo(cmd, &info)
	return nil
}

func printTSTInfo(cmd *cobra.Command, info *tsp.TSTInfo) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "  Serial:   %s\n", info.SerialNumber.Text(16))
	fmt.Fprintf(w, "  Gen time: %s\n", info.GenTime.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "  Policy:   %s\n", info.Policy)
	fmt.Fprintf(w, "  Imprint:  %s %s\n", info.MessageImprint.HashAlgorithm, hex.EncodeToString(info.MessageImprint.HashedMessage))
}

func runTSPVerify(cmd *cobra.Command, args []string) error {
	der, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	certs, err := loadCertificates(tspVerifyCerts)
	if err != nil {
		return err
	}
	config := &tsp.VerifyConfig{Certificates: certs}
	if tspVerifyData != "" {
		if config.Data, err = os.ReadFile(tspVerifyData); err != nil {
			return fmt.Errorf("failed to read data: %w", err)
		}
	}
	res, err := tsp.Verify(der, config)
	if err != nil {
		return err
	}

	printTSTInfo(cmd, res.Token.Info)
	fmt.Fprintf(cmd.OutOrStdout(), "  TSA:      %s\n", res.SignerCert.SubjectString())
	if !res.TimeStampingEKU {
		logger.Warn("TSA certificate lacks the timeStamping extended key usage")
	}
	if !res.Verified {
		return fmt.Errorf("token signature verification failed")
	}
	if config.Data != nil && !res.HashMatch {
		return fmt.Errorf("message imprint does not match the data")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Verification successful\n")
	return nil
}
