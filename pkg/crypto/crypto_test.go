package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// =============================================================================
// [Unit] Algorithm Table Tests
// =============================================================================

func TestU_LookupAlgorithm(t *testing.T) {
	a, err := LookupAlgorithm("SHA256withECDSA")
	if err != nil {
		t.Fatalf("LookupAlgorithm() error = %v", err)
	}
	if a.OID != "1.2.840.10045.4.3.2" || a.Hash != "sha256" || a.Key != KeyEC {
		t.Errorf("LookupAlgorithm() = %+v", a)
	}

	if _, err := LookupAlgorithm("MD5withRSA"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("LookupAlgorithm(MD5withRSA) error = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestU_AlgorithmByOID(t *testing.T) {
	tests := []struct {
		oid, hash, want string
	}{
		{"1.2.840.113549.1.1.11", "", "SHA256withRSA"},
		{"1.2.840.113549.1.1.10", "", "SHA256withRSAandMGF1"},
		{"1.2.840.113549.1.1.10", "sha512", "SHA512withRSAandMGF1"},
		{"1.3.101.113", "", "Ed448"},
		{"2.16.840.1.101.3.4.3.18", "", "ML-DSA-65"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			a, err := AlgorithmByOID(tt.oid, tt.hash)
			if err != nil {
				t.Fatalf("AlgorithmByOID() error = %v", err)
			}
			if a.Name != tt.want {
				t.Errorf("AlgorithmByOID() = %s, want %s", a.Name, tt.want)
			}
		})
	}
}

func TestU_SignatureAlgorithm_PSSDefaultHash(t *testing.T) {
	// RSASSA-PSS-params with every field defaulted selects SHA-1.
	id := AlgorithmIdentifier{OID: "1.2.840.113549.1.1.10", Params: []byte{0x30, 0x00}}

	_, err := id.SignatureAlgorithm()
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("SignatureAlgorithm() error = %v, want ErrUnsupportedAlgorithm", err)
	}
	if !strings.Contains(err.Error(), "RSASSA-PSS with sha1") {
		t.Errorf("error %q does not name the algorithm", err)
	}

	if _, err := AlgorithmByOID("1.2.840.113549.1.1.10", "md5"); err == nil || !strings.Contains(err.Error(), "RSASSA-PSS with md5") {
		t.Errorf("AlgorithmByOID(pss, md5) error = %v", err)
	}
}

func TestU_Digest(t *testing.T) {
	d, err := Digest("sha256", []byte("abc"))
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := hex.EncodeToString(d); got != want {
		t.Errorf("Digest(sha256) = %s, want %s", got, want)
	}

	d, err = Digest("sha3-256", []byte("abc"))
	if err != nil {
		t.Fatalf("Digest(sha3-256) error = %v", err)
	}
	if got := hex.EncodeToString(d); got != "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532" {
		t.Errorf("Digest(sha3-256) = %s", got)
	}

	if _, err := Digest("md5", nil); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Digest(md5) error = %v", err)
	}
}

func TestU_DefaultSignatureAlgorithm(t *testing.T) {
	ec, err := GenerateKey(KeyEC)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DefaultSignatureAlgorithm(ec.Public(), "sha384")
	if err != nil || got != "SHA384withECDSA" {
		t.Errorf("DefaultSignatureAlgorithm(EC, sha384) = %q, %v", got, err)
	}

	ed, err := GenerateKey(KeyEd25519)
	if err != nil {
		t.Fatal(err)
	}
	got, err = DefaultSignatureAlgorithm(ed.Public(), "sha256")
	if err != nil || got != "Ed25519" {
		t.Errorf("DefaultSignatureAlgorithm(Ed25519) = %q, %v", got, err)
	}
}

// =============================================================================
// [Unit] Engine Sign/Verify Tests
// =============================================================================

func TestU_Engine_SignVerify(t *testing.T) {
	tests := []struct {
		key KeyType
		alg string
	}{
		{KeyEC, "SHA256withECDSA"},
		{KeyEC, "SHA512withECDSA"},
		{KeyRSA, "SHA256withRSA"},
		{KeyRSA, "SHA384withRSAandMGF1"},
		{KeyEd25519, "Ed25519"},
		{KeyEd448, "Ed448"},
		{KeyMLDSA44, "ML-DSA-44"},
		{KeyMLDSA65, "ML-DSA-65"},
	}

	msg := []byte("message to be signed")
	for _, tt := range tests {
		t.Run("[Unit] Engine: "+tt.alg, func(t *testing.T) {
			key, err := GenerateKey(tt.key)
			if err != nil {
				t.Fatalf("GenerateKey() error = %v", err)
			}
			sig, err := DefaultEngine.Sign(msg, tt.alg, key)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}

			ok, err := DefaultEngine.Verify(msg, sig, tt.alg, key.Public())
			if err != nil || !ok {
				t.Fatalf("Verify() = %v, %v; want true", ok, err)
			}

			tampered := append([]byte(nil), sig...)
			tampered[len(tampered)/2] ^= 0x01
			ok, err = DefaultEngine.Verify(msg, tampered, tt.alg, key.Public())
			if err != nil {
				t.Fatalf("Verify(tampered) error = %v", err)
			}
			if ok {
				t.Error("Verify(tampered) = true, want false")
			}
		})
	}
}

func TestU_Engine_Errors(t *testing.T) {
	key, err := GenerateKey(KeyEC)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DefaultEngine.Sign([]byte("m"), "NoSuchAlg", key); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Sign(unknown) error = %v, want ErrUnsupportedAlgorithm", err)
	}
	if _, err := DefaultEngine.Sign([]byte("m"), "SHA256withRSA", key); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("Sign(EC key, RSA alg) error = %v, want ErrKeyMismatch", err)
	}
	if _, err := DefaultEngine.Verify([]byte("m"), []byte{1}, "Ed25519", key.Public()); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("Verify(EC key, Ed25519) error = %v, want ErrKeyMismatch", err)
	}
}

// =============================================================================
// [Unit] Key Encoding Tests
// =============================================================================

func TestU_PublicKey_RoundTrip(t *testing.T) {
	for _, kt := range []KeyType{KeyEC, KeyEd25519, KeyEd448, KeyMLDSA65} {
		t.Run(string(kt), func(t *testing.T) {
			key, err := GenerateKey(kt)
			if err != nil {
				t.Fatal(err)
			}
			der, err := MarshalPublicKey(key.Public())
			if err != nil {
				t.Fatalf("MarshalPublicKey() error = %v", err)
			}
			pub, err := ParsePublicKey(der)
			if err != nil {
				t.Fatalf("ParsePublicKey() error = %v", err)
			}
			got, err := KeyTypeOf(pub)
			if err != nil || got != kt {
				t.Errorf("KeyTypeOf(parsed) = %s, %v; want %s", got, err, kt)
			}
		})
	}
}

func TestU_ParsePublicKey_Garbage(t *testing.T) {
	if _, err := ParsePublicKey([]byte{0x30, 0x00}); err == nil {
		t.Error("ParsePublicKey(empty SEQUENCE) expected error")
	}
}

func TestU_PrivateKeyPEM_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, kt := range []KeyType{KeyEC, KeyEd25519, KeyEd448, KeyMLDSA65} {
		t.Run(string(kt), func(t *testing.T) {
			key, err := GenerateKey(kt)
			if err != nil {
				t.Fatal(err)
			}
			data, err := MarshalPrivateKeyPEM(key)
			if err != nil {
				t.Fatalf("MarshalPrivateKeyPEM() error = %v", err)
			}
			path := filepath.Join(dir, string(kt)+".pem")
			if err := os.WriteFile(path, data, 0600); err != nil {
				t.Fatal(err)
			}
			loaded, err := LoadPrivateKey(path)
			if err != nil {
				t.Fatalf("LoadPrivateKey() error = %v", err)
			}

			switch k := loaded.(type) {
			case *ecdsa.PrivateKey:
				if !k.PublicKey.Equal(key.Public()) {
					t.Error("EC public key mismatch")
				}
			case ed25519.PrivateKey:
				if !k.Public().(ed25519.PublicKey).Equal(key.Public()) {
					t.Error("Ed25519 public key mismatch")
				}
			case ed448.PrivateKey:
				if !k.Public().(ed448.PublicKey).Equal(key.Public()) {
					t.Error("Ed448 public key mismatch")
				}
			case *mldsa65.PrivateKey:
				if !k.Public().(*mldsa65.PublicKey).Equal(key.Public()) {
					t.Error("ML-DSA-65 public key mismatch")
				}
			default:
				t.Fatalf("LoadPrivateKey() returned %T", loaded)
			}
		})
	}
}

func TestU_ParsePrivateKeyPEM_Errors(t *testing.T) {
	if _, err := ParsePrivateKeyPEM([]byte("not pem")); err == nil {
		t.Error("expected error for non-PEM input")
	}
	block := "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"
	if _, err := ParsePrivateKeyPEM([]byte(block)); err == nil {
		t.Error("expected error for CERTIFICATE block")
	}
}

// =============================================================================
// [Unit] HSM Configuration Tests
// =============================================================================

func TestU_HSMConfig_Validate(t *testing.T) {
	slot := uint(0)
	tests := []struct {
		name    string
		cfg     HSMConfig
		wantErr bool
	}{
		{"[Unit] HSMConfig: complete", HSMConfig{Lib: "/lib.so", Token: "t", PinEnv: "PIN", KeyLabel: "k"}, false},
		{"[Unit] HSMConfig: slot only", HSMConfig{Lib: "/lib.so", Slot: &slot, PinEnv: "PIN", KeyID: "01"}, false},
		{"[Unit] HSMConfig: missing lib", HSMConfig{Token: "t", PinEnv: "PIN", KeyLabel: "k"}, true},
		{"[Unit] HSMConfig: missing token", HSMConfig{Lib: "/lib.so", PinEnv: "PIN", KeyLabel: "k"}, true},
		{"[Unit] HSMConfig: missing pin_env", HSMConfig{Lib: "/lib.so", Token: "t", KeyLabel: "k"}, true},
		{"[Unit] HSMConfig: missing key", HSMConfig{Lib: "/lib.so", Token: "t", PinEnv: "PIN"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestU_HSMConfig_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsm.yaml")
	yaml := "lib: /usr/lib/softhsm/libsofthsm2.so\ntoken: signing\npin_env: TEST_HSM_PIN\nkey_label: cms-key\n"
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadHSMConfig(path)
	if err != nil {
		t.Fatalf("LoadHSMConfig() error = %v", err)
	}

	t.Setenv("TEST_HSM_PIN", "1234")
	p11, err := cfg.ToPKCS11Config()
	if err != nil {
		t.Fatalf("ToPKCS11Config() error = %v", err)
	}
	if p11.PIN != "1234" || p11.KeyLabel != "cms-key" || p11.TokenLabel != "signing" {
		t.Errorf("ToPKCS11Config() = %+v", p11)
	}
}
