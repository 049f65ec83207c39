package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/qasn1/pkg/asn1der"
)

var asn1Cmd = &cobra.Command{
	Use:   "asn1",
	Short: "Decode and build raw DER",
	Long: `Low-level DER operations.

This command provides:
  - dump:  Print any DER structure as an indented tree
  - build: Encode a YAML description as DER`,
}

var asn1DumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print a DER structure as a tree",
	Long: `Print a DER structure as an indented tree, one TLV per line.

PEM input is unwrapped automatically. Use --hex when the file holds hex
text. Use "-" to read stdin.

Examples:
  qasn1 asn1 dump cert.der
  qasn1 asn1 dump cert.pem
  echo 300602010102012a | qasn1 asn1 dump --hex -`,
	Args: cobra.ExactArgs(1),
	RunE: runASN1Dump,
}

var asn1BuildCmd = &cobra.Command{
	Use:   "build <file.yaml>",
	Short: "Encode a YAML description as DER",
	Long: `Encode a declarative YAML tree as DER.

Each node names exactly one kind (seq, set, int, oid, utf8, prnstr,
octstr, bitstr, tag, ...). Without --out the encoding is printed as hex.

Examples:
  # seq.yaml:
  #   seq:
  #     - int: {value: 1}
  #     - oid: sha256
  qasn1 asn1 build seq.yaml
  qasn1 asn1 build seq.yaml --out seq.der`,
	Args: cobra.ExactArgs(1),
	RunE: runASN1Build,
}

var (
	asn1DumpHex  bool
	asn1BuildOut string
)

func init() {
	asn1DumpCmd.Flags().BoolVar(&asn1DumpHex, "hex", false, "Input is hex text")
	asn1BuildCmd.Flags().StringVarP(&asn1BuildOut, "out", "o", "", "Output DER file (default: hex on stdout)")

	asn1Cmd.AddCommand(asn1DumpCmd)
	asn1Cmd.AddCommand(asn1BuildCmd)
}

func runASN1Dump(cmd *cobra.Command, args []string) error {
	data, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	der, err := decodeDER(data, asn1DumpHex)
	if err != nil {
		return err
	}
	logger.Debug("dumping DER", zap.String("file", args[0]), zap.Int("bytes", len(der)))
	tree, err := asn1der.Dump(der)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), tree)
	return err
}

func runASN1Build(cmd *cobra.Command, args []string) error {
	data, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	param, err := asn1der.LoadParam(data)
	if err != nil {
		return err
	}
	v, err := asn1der.Build(param)
	if err != nil {
		return err
	}
	der, err := v.Encode()
	if err != nil {
		return err
	}
	logger.Debug("built DER", zap.Int("bytes", len(der)))
	if asn1BuildOut == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(der))
		return err
	}
	return writeOutput(asn1BuildOut, der, cmd.OutOrStdout())
}
