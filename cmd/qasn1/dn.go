package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/qasn1/pkg/x509name"
)

var dnCmd = &cobra.Command{
	Use:   "dn",
	Short: "Convert distinguished names",
	Long: `Convert X.500 distinguished names between DER and the
"/type=value/..." text form.

Examples:
  qasn1 dn encode "/C=US/O=Test Org/CN=Alice"
  qasn1 dn decode 3010310e300c06035504030c05416c696365`,
}

var dnDecodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a DER Name given as hex",
	Args:  cobra.ExactArgs(1),
	RunE:  runDNDecode,
}

var dnEncodeCmd = &cobra.Command{
	Use:   "encode <dn>",
	Short: "Encode a \"/type=value\" name as DER hex",
	Long: `Encode a "/type=value/..." name as DER and print it as hex.

Attribute types are short names (C, O, OU, CN, ...) or dotted OIDs.
Multi-valued RDNs join their values with "+". Escape "/", "+" and "\"
with a backslash.`,
	Args: cobra.ExactArgs(1),
	RunE: runDNEncode,
}

func init() {
	dnCmd.AddCommand(dnDecodeCmd)
	dnCmd.AddCommand(dnEncodeCmd)
}

func runDNDecode(cmd *cobra.Command, args []string) error {
	s, err := x509name.DecodeHex(strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
	return err
}

func runDNEncode(cmd *cobra.Command, args []string) error {
	der, err := x509name.EncodeString(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(der))
	return err
}
