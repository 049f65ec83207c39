package cms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// testSigner holds a key and its self-signed certificate.
type testSigner struct {
	Key  crypto.Signer
	Cert *x509cert.Certificate
}

// generateECDSASigner generates an ECDSA key and certificate for testing.
func generateECDSASigner(t *testing.T, curve elliptic.Curve) *testSigner {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	return newTestSigner(t, priv, "ECDSA Signer")
}

// generateRSASigner generates an RSA key and certificate for testing.
func generateRSASigner(t *testing.T) *testSigner {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return newTestSigner(t, priv, "RSA Signer")
}

// generateEd25519Signer generates an Ed25519 key and certificate for testing.
func generateEd25519Signer(t *testing.T) *testSigner {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate Ed25519 key: %v", err)
	}
	return newTestSigner(t, priv, "Ed25519 Signer")
}

func newTestSigner(t *testing.T, key crypto.Signer, cn string) *testSigner {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		t.Fatalf("Failed to generate serial: %v", err)
	}
	ski := make([]byte, 8)
	if _, err := rand.Read(ski); err != nil {
		t.Fatalf("Failed to generate key identifier: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"Test Org"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		SubjectKeyId: ski,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509cert.Parse(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return &testSigner{Key: key, Cert: cert}
}

// signContent signs content with one signer and default options.
func signContent(t *testing.T, s *testSigner, content []byte, detached bool) []byte {
	t.Helper()
	der, err := Sign(content, &SignerConfig{
		Certificate:  s.Cert,
		Signer:       s.Key,
		Detached:     detached,
		IncludeCerts: true,
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return der
}
