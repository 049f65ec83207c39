package main

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/qasn1/pkg/audit"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
)

// executeCommand executes a Cobra command with the given args and returns output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// resetFlags clears the Changed state of the named flags of cmd. It
// survives between Execute calls and would satisfy required-flag checks.
func resetFlags(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		if f := cmd.Flags().Lookup(n); f != nil {
			f.Changed = false
		}
		if f := cmd.PersistentFlags().Lookup(n); f != nil {
			f.Changed = false
		}
	}
}

// resetRootFlags clears the persistent flags and closes any audit log a
// failed command left open.
func resetRootFlags() {
	auditLogPath = ""
	verbose = false
	resetFlags(rootCmd, "audit-log", "verbose")
	_ = audit.Close()
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
}

// newTestContext creates a new test context with a temp directory.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	resetRootFlags()
	t.Cleanup(resetRootFlags)
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name, content string) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// readFile reads a file from the temp directory.
func (tc *testContext) readFile(path string) []byte {
	tc.t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tc.t.Fatalf("Failed to read %s: %v", path, err)
	}
	return data
}

// writeCertPEM writes a certificate in PEM format.
func (tc *testContext) writeCertPEM(name string, der []byte) string {
	tc.t.Helper()
	return tc.writeFile(name, string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})))
}

// writeKeyPEM writes a private key in PEM format.
func (tc *testContext) writeKeyPEM(name string, key crypto.Signer) string {
	tc.t.Helper()
	data, err := qcrypto.MarshalPrivateKeyPEM(key)
	if err != nil {
		tc.t.Fatalf("Failed to marshal key: %v", err)
	}
	return tc.writeFile(name, string(data))
}

// generateCert creates a self-signed ECDSA certificate. eku is added as
// the extended key usage when non-empty.
func generateCert(t *testing.T, cn string, eku ...x509.ExtKeyUsage) (crypto.Signer, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		t.Fatalf("Failed to generate serial: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"Test Org"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  eku,
		DNSNames:     []string{"xn--bcher-kva.example"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, priv.Public(), priv)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	return priv, der
}

// setupSigningPair creates a key pair and certificate for signing tests.
func (tc *testContext) setupSigningPair() (certPath, keyPath string) {
	tc.t.Helper()
	priv, der := generateCert(tc.t, "Test Signer")
	return tc.writeCertPEM("signer.crt", der), tc.writeKeyPEM("signer.key", priv)
}

// setupTSAPair creates a TSA key pair and certificate with the
// timeStamping extended key usage.
func (tc *testContext) setupTSAPair() (certPath, keyPath string) {
	tc.t.Helper()
	priv, der := generateCert(tc.t, "Test TSA", x509.ExtKeyUsageTimeStamping)
	return tc.writeCertPEM("tsa.crt", der), tc.writeKeyPEM("tsa.key", priv)
}

// assertError fails the test if err is nil.
func assertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

// assertNoError fails the test if err is not nil.
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// assertContains fails the test if out does not contain every want.
func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}
