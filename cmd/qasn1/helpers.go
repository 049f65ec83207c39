package main

import (
	"bytes"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// readInput reads a file, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// decodeDER turns file contents into DER. PEM input yields its first
// block; with asHex the contents are hex text, whitespace ignored.
func decodeDER(data []byte, asHex bool) ([]byte, error) {
	if asHex {
		clean := strings.Join(strings.Fields(string(data)), "")
		der, err := hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return der, nil
	}
	if block, _ := pem.Decode(data); block != nil {
		return block.Bytes, nil
	}
	return data, nil
}

// loadCertificate reads a PEM or DER certificate.
func loadCertificate(path string) (*x509cert.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return x509cert.ParsePEM(data)
	}
	return x509cert.Parse(data)
}

// loadCertificates reads every path, each holding one certificate.
func loadCertificates(paths []string) ([]*x509cert.Certificate, error) {
	var out []*x509cert.Certificate
	for _, p := range paths {
		c, err := loadCertificate(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(path string, data []byte, w io.Writer) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// subjectSerial returns the audit identity of a certificate.
func subjectSerial(c *x509cert.Certificate) (string, string) {
	if c == nil {
		return "", ""
	}
	return c.SubjectString(), c.SerialHex()
}
