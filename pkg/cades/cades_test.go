package cades

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/cms"
	"github.com/remiblancher/qasn1/pkg/tlv"
	"github.com/remiblancher/qasn1/pkg/tsp"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// newSigner creates a P-256 key with a self-signed certificate.
func newSigner(t *testing.T, cn string, serial int64, eku ...x509.ExtKeyUsage) (*x509cert.Certificate, crypto.Signer) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  eku,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, priv.Public(), priv)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509cert.Parse(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert, priv
}

// signBES creates an attached CAdES-BES envelope, optionally with extra
// unsigned attributes.
func signBES(t *testing.T, content []byte, unsigned ...*cms.Attribute) ([]byte, *x509cert.Certificate) {
	t.Helper()
	cert, key := newSigner(t, "Signer", 7)
	der, err := cms.Sign(content, &cms.SignerConfig{
		Certificate:          cert,
		Signer:               key,
		SigningCertificateV2: true,
		IncludeCerts:         true,
		UnsignedAttributes:   unsigned,
	})
	if err != nil {
		t.Fatalf("cms.Sign() error = %v", err)
	}
	return der, cert
}

func tsaConfig(t *testing.T) *cms.SignerConfig {
	t.Helper()
	cert, key := newSigner(t, "TSA", 99, x509.ExtKeyUsageTimeStamping)
	return &cms.SignerConfig{Certificate: cert, Signer: key, IncludeCerts: true}
}

func tstTemplate() tsp.TSTInfo {
	return tsp.TSTInfo{
		Policy:       "1.2.3.4.1",
		SerialNumber: big.NewInt(5),
		GenTime:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// signedPortion returns the SignerInfo bytes from version through the
// signature value.
func signedPortion(t *testing.T, der []byte, idx int) []byte {
	t.Helper()
	l, err := cms.LocateSignedData(der)
	if err != nil {
		t.Fatalf("LocateSignedData() error = %v", err)
	}
	sl := l.Signers[idx]
	return append([]byte{}, der[sl.Version.Off:sl.Signature.End()]...)
}

// =============================================================================
// [Unit] Attribute Tests
// =============================================================================

func TestU_SignaturePolicyIdentifier_Encoding(t *testing.T) {
	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = byte(i + 1)
	}
	attr, err := NewSignaturePolicyIdentifier(SignaturePolicy{OID: "1.2.3.4.5", HashAlgorithm: "sha1", Hash: hash})
	if err != nil {
		t.Fatalf("NewSignaturePolicyIdentifier() error = %v", err)
	}
	got, err := asn1der.EncodeHex(attr)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := "303a060b2a864886f70d010910020f312b302906042a0304053021300906052b0e03021a0500" +
		"04140102030405060708090a0b0c0d0e0f1011121314"
	if got != want {
		t.Errorf("Encode() = %s\nwant %s", got, want)
	}
	if attr.Name() != "sigPolicyId" {
		t.Errorf("Name() = %s", attr.Name())
	}
}

func TestU_SignaturePolicyIdentifier_URI(t *testing.T) {
	hash := make([]byte, 32)
	attr, err := NewSignaturePolicyIdentifier(SignaturePolicy{OID: "1.2.3.4.5", Hash: hash, URI: "https://example.com/policy.der"})
	if err != nil {
		t.Fatalf("NewSignaturePolicyIdentifier() error = %v", err)
	}
	der := asn1der.MustEncode(attr)
	// attribute / values / SignaturePolicyId / qualifiers / first / SPuri
	off, err := tlv.Descend(der, 0, 1, 0, 2, 0, 1)
	if err != nil {
		t.Fatalf("Descend() error = %v", err)
	}
	if der[off] != tlv.TagIA5String {
		t.Fatalf("SPuri tag = 0x%02x", der[off])
	}
	v, _ := tlv.Value(der, off)
	if string(v) != "https://example.com/policy.der" {
		t.Errorf("SPuri = %q", v)
	}
}

func TestU_SignaturePolicyIdentifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		policy SignaturePolicy
		want   error
	}{
		{"[Unit] Policy: missing OID", SignaturePolicy{Hash: make([]byte, 32)}, ErrInvalidPolicy},
		{"[Unit] Policy: missing hash", SignaturePolicy{OID: "1.2.3"}, ErrInvalidPolicy},
		{"[Unit] Policy: wrong hash length", SignaturePolicy{OID: "1.2.3", Hash: make([]byte, 20)}, asn1der.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSignaturePolicyIdentifier(tt.policy); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestU_OtherHash(t *testing.T) {
	sha1Hash, err := NewOtherHash("sha1", []byte("abc"))
	if err != nil {
		t.Fatalf("NewOtherHash(sha1) error = %v", err)
	}
	if got := hex.EncodeToString(asn1der.MustEncode(sha1Hash)); got != "0414a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("sha1 OtherHash = %s", got)
	}

	def, err := NewOtherHash("", []byte("abc"))
	if err != nil {
		t.Fatalf("NewOtherHash(default) error = %v", err)
	}
	der := asn1der.MustEncode(def)
	if der[0] != tlv.TagSequence {
		t.Fatalf("default OtherHash tag = 0x%02x, want SEQUENCE", der[0])
	}
	algOff, _ := tlv.Descend(der, 0, 0, 0)
	if v, _ := tlv.ValueHex(der, algOff); v != "608648016503040201" {
		t.Errorf("default hash algorithm = %s, want sha256", v)
	}
}

func TestU_CompleteCertificateRefs(t *testing.T) {
	a, _ := newSigner(t, "A", 1)
	b, _ := newSigner(t, "B", 2)

	attr, err := NewCompleteCertificateRefs([]*x509cert.Certificate{a, b}, "sha384", true)
	if err != nil {
		t.Fatalf("NewCompleteCertificateRefs() error = %v", err)
	}
	der := asn1der.MustEncode(attr)
	refs, _ := tlv.Descend(der, 0, 1, 0)
	ids, _ := tlv.Children(der, refs)
	if len(ids) != 2 {
		t.Fatalf("OtherCertID count = %d, want 2", len(ids))
	}
	for _, id := range ids {
		fields, _ := tlv.Children(der, id)
		if len(fields) != 2 {
			t.Errorf("OtherCertID fields = %d, want hash and issuerSerial", len(fields))
		}
	}

	if _, err := NewCompleteCertificateRefs(nil, "", false); !errors.Is(err, asn1der.ErrMissingField) {
		t.Errorf("empty refs error = %v, want ErrMissingField", err)
	}
}

func TestU_SignatureTimeStamp_RejectsNonToken(t *testing.T) {
	der, _ := signBES(t, []byte("not a token"))
	if _, err := NewSignatureTimeStamp(der); !errors.Is(err, tsp.ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

// =============================================================================
// [Unit] Unsigned Attribute Augmentation Tests
// =============================================================================

func TestU_ParseForAddingUnsigned_RoundTrip(t *testing.T) {
	der, _ := signBES(t, []byte("hello"))
	sd, err := ParseSignedDataForAddingUnsigned(der)
	if err != nil {
		t.Fatalf("ParseSignedDataForAddingUnsigned() error = %v", err)
	}
	out, err := sd.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(out, der) {
		t.Error("re-encoding without changes should be byte-identical")
	}
}

func TestU_SetUnsigned_Replaces(t *testing.T) {
	first, _ := cms.NewAttribute("1.2.3.9", asn1der.NewInteger(1))
	other, _ := cms.NewAttribute("1.2.3.10", asn1der.NewInteger(2))
	der, _ := signBES(t, []byte("hello"), first, other)

	sd, err := ParseSignedDataForAddingUnsigned(der)
	if err != nil {
		t.Fatalf("ParseSignedDataForAddingUnsigned() error = %v", err)
	}
	si := sd.Signers[0]
	if got := si.UnsignedAttributeTypes(); len(got) != 2 || got[0] != "1.2.3.9" {
		t.Fatalf("UnsignedAttributeTypes() = %v", got)
	}

	replacement, _ := cms.NewAttribute("1.2.3.9", asn1der.NewInteger(3))
	si.SetUnsigned(replacement)
	added, _ := cms.NewAttribute("1.2.3.11", asn1der.NewInteger(4))
	si.SetUnsigned(added)

	got := si.UnsignedAttributeTypes()
	want := []string{"1.2.3.9", "1.2.3.10", "1.2.3.11"}
	if len(got) != len(want) {
		t.Fatalf("UnsignedAttributeTypes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("type[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	attrs, err := si.UnsignedAttributes()
	if err != nil {
		t.Fatalf("UnsignedAttributes() error = %v", err)
	}
	if v := hex.EncodeToString(asn1der.MustEncode(attrs[0].Values[0])); v != "020103" {
		t.Errorf("replaced value = %s, want 020103", v)
	}
}

func TestU_AddUnsigned_KeepsArrivalOrder(t *testing.T) {
	der, _ := signBES(t, []byte("hello"))
	sd, err := ParseSignedDataForAddingUnsigned(der)
	if err != nil {
		t.Fatalf("ParseSignedDataForAddingUnsigned() error = %v", err)
	}

	// DER SET ordering would put the shorter second attribute first.
	longer, _ := cms.NewAttribute("1.2.3.10", asn1der.NewInteger(300))
	shorter, _ := cms.NewAttribute("1.2.3.9", asn1der.NewInteger(1))
	sd.Signers[0].AddUnsigned(longer)
	sd.Signers[0].AddUnsigned(shorter)

	out, err := sd.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(signedPortion(t, out, 0), signedPortion(t, der, 0)) {
		t.Error("signed portion changed")
	}

	reparsed, err := ParseSignedDataForAddingUnsigned(out)
	if err != nil {
		t.Fatalf("ParseSignedDataForAddingUnsigned() error = %v", err)
	}
	got := reparsed.Signers[0].UnsignedAttributeTypes()
	if len(got) != 2 || got[0] != "1.2.3.10" || got[1] != "1.2.3.9" {
		t.Errorf("UnsignedAttributeTypes() = %v, want [1.2.3.10 1.2.3.9]", got)
	}
}

func TestU_Signer_IndexOutOfRange(t *testing.T) {
	der, _ := signBES(t, []byte("hello"))
	if _, err := AddSignatureTimeStamp(der, 1, nil); err == nil {
		t.Error("AddSignatureTimeStamp() with a nil token should fail")
	}
	sd, _ := ParseSignedDataForAddingUnsigned(der)
	if _, err := sd.Signer(3); !errors.Is(err, ErrSignerIndex) {
		t.Errorf("error = %v, want ErrSignerIndex", err)
	}
}

// =============================================================================
// [Functional] CAdES-EPES and CAdES-T
// =============================================================================

func TestF_EPES_SignVerify(t *testing.T) {
	cert, key := newSigner(t, "Signer", 8)
	policy, err := NewSignaturePolicyIdentifier(SignaturePolicy{OID: "1.2.3.4.5", Hash: make([]byte, 32)})
	if err != nil {
		t.Fatalf("NewSignaturePolicyIdentifier() error = %v", err)
	}
	der, err := cms.Sign([]byte("policy bound"), &cms.SignerConfig{
		Certificate:          cert,
		Signer:               key,
		SigningCertificateV2: true,
		IncludeCerts:         true,
		SignedAttributes:     []*cms.Attribute{policy},
	})
	if err != nil {
		t.Fatalf("cms.Sign() error = %v", err)
	}

	res, err := cms.Verify(der, nil)
	if err != nil {
		t.Fatalf("cms.Verify() error = %v", err)
	}
	if !res.Valid() {
		t.Error("EPES signature should verify")
	}
	sd, _ := cms.ParseSignedData(der)
	if sd.Signers[0].SignedAttr(OIDSignaturePolicyID) == nil {
		t.Error("signature-policy-identifier should be a signed attribute")
	}
}

func TestF_TimeStampSignature(t *testing.T) {
	extra, _ := cms.NewAttribute("1.2.3.9", asn1der.NewInteger(1))
	der, _ := signBES(t, []byte("document"), extra)
	before := signedPortion(t, der, 0)

	stamped, err := TimeStampSignature(der, 0, tstTemplate(), tsaConfig(t))
	if err != nil {
		t.Fatalf("TimeStampSignature() error = %v", err)
	}
	if !bytes.Equal(signedPortion(t, stamped, 0), before) {
		t.Error("signed portion changed after adding a timestamp")
	}

	res, err := cms.Verify(stamped, nil)
	if err != nil {
		t.Fatalf("cms.Verify() error = %v", err)
	}
	if !res.Valid() {
		t.Error("timestamped envelope should still verify")
	}

	sd, _ := ParseSignedDataForAddingUnsigned(stamped)
	types := sd.Signers[0].UnsignedAttributeTypes()
	if len(types) != 2 || types[0] != "1.2.3.9" || types[1] != OIDSignatureTimeStampToken {
		t.Errorf("UnsignedAttributeTypes() = %v", types)
	}

	results, err := VerifySignatureTimeStamps(stamped, 0, nil)
	if err != nil {
		t.Fatalf("VerifySignatureTimeStamps() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("timestamp count = %d, want 1", len(results))
	}
	r := results[0]
	if !r.Verified || !r.HashMatch || !r.TimeStampingEKU {
		t.Errorf("timestamp = verified %v, hashMatch %v, eku %v", r.Verified, r.HashMatch, r.TimeStampingEKU)
	}
	if r.Token.Info.SerialNumber.Int64() != 5 {
		t.Errorf("token serial = %v", r.Token.Info.SerialNumber)
	}
}

func TestF_TimeStampSignature_Twice(t *testing.T) {
	der, _ := signBES(t, []byte("document"))
	tsa := tsaConfig(t)

	once, err := TimeStampSignature(der, 0, tstTemplate(), tsa)
	if err != nil {
		t.Fatalf("first TimeStampSignature() error = %v", err)
	}
	twice, err := TimeStampSignature(once, 0, tstTemplate(), tsa)
	if err != nil {
		t.Fatalf("second TimeStampSignature() error = %v", err)
	}
	results, err := VerifySignatureTimeStamps(twice, 0, nil)
	if err != nil {
		t.Fatalf("VerifySignatureTimeStamps() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("timestamp count = %d, want 2", len(results))
	}
}

func TestF_SignatureTimeStampRequest(t *testing.T) {
	der, _ := signBES(t, []byte("document"))
	req, err := SignatureTimeStampRequest(der, 0, "", big.NewInt(9))
	if err != nil {
		t.Fatalf("SignatureTimeStampRequest() error = %v", err)
	}
	sd, _ := ParseSignedDataForAddingUnsigned(der)
	if ok, _ := req.MessageImprint.Matches(sd.Signers[0].SignatureValue()); !ok {
		t.Error("request imprint should cover the signature value")
	}
	if !req.CertReq || req.MessageImprint.HashAlgorithm != "sha256" {
		t.Errorf("request = %+v", req)
	}
}
