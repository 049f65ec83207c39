package cms

import (
	"bytes"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/tlv"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// =============================================================================
// [Unit] Attribute Tests
// =============================================================================

func TestU_Attribute_ContentTypeEncoding(t *testing.T) {
	attr, err := NewContentTypeAttr("data")
	if err != nil {
		t.Fatalf("NewContentTypeAttr() error = %v", err)
	}
	got, err := asn1der.EncodeHex(attr)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := "3018" + "06092a864886f70d010903" + "310b" + "06092a864886f70d010701"
	if got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}
	if attr.Name() != "contentType" {
		t.Errorf("Name() = %s", attr.Name())
	}
}

func TestU_Attribute_Errors(t *testing.T) {
	if _, err := NewAttribute("noSuchAttribute", asn1der.NewNull()); !errors.Is(err, asn1der.ErrUnsupportedType) {
		t.Errorf("unknown type error = %v, want ErrUnsupportedType", err)
	}
	if _, err := NewAttribute("signingTime"); !errors.Is(err, asn1der.ErrMissingField) {
		t.Errorf("no values error = %v, want ErrMissingField", err)
	}
}

func TestU_ParseAttribute_RoundTrip(t *testing.T) {
	orig := NewSigningTimeAttr(time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC))
	der := asn1der.MustEncode(orig)

	parsed, err := ParseAttribute(der)
	if err != nil {
		t.Fatalf("ParseAttribute() error = %v", err)
	}
	if parsed.Type != OIDSigningTime || len(parsed.Values) != 1 {
		t.Fatalf("ParseAttribute() = %+v", parsed)
	}
	if !bytes.Equal(asn1der.MustEncode(parsed), der) {
		t.Error("re-encoded attribute differs")
	}

	if _, err := ParseAttribute([]byte{0x30, 0x03, 0x02, 0x01, 0x01}); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("ParseAttribute(bad) error = %v", err)
	}
}

func TestU_AttributeList_Ordering(t *testing.T) {
	ct, _ := NewContentTypeAttr("data")
	md := NewMessageDigestAttr([]byte{1, 2, 3})
	st := NewSigningTimeAttr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	t.Run("[Unit] AttributeList: sorted is order invariant", func(t *testing.T) {
		a := asn1der.MustEncode(NewAttributeList(ct, md, st))
		b := asn1der.MustEncode(NewAttributeList(st, md, ct))
		if !bytes.Equal(a, b) {
			t.Errorf("sorted encodings differ:\n%x\n%x", a, b)
		}
	})

	t.Run("[Unit] AttributeList: unsorted keeps insertion order", func(t *testing.T) {
		der := asn1der.MustEncode(NewAttributeListUnsorted(st, ct))
		first, err := tlv.Child(der, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := tlv.TLV(der, first)
		if !bytes.Equal(b, asn1der.MustEncode(st)) {
			t.Error("first element is not the first inserted attribute")
		}
	})

	t.Run("[Unit] AttributeList: Set replaces same type", func(t *testing.T) {
		l := NewAttributeList(md)
		l.Set(NewMessageDigestAttr([]byte{9}))
		if l.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", l.Len())
		}
		if l.Get("messageDigest") == md {
			t.Error("Set did not replace the attribute")
		}
	})
}

func TestU_SigningCertificateV2_HashAlgorithm(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())

	tests := []struct {
		name     string
		hash     string
		firstTag byte
	}{
		{"[Unit] SigningCertificateV2: sha256 default omitted", "", tlv.TagOctetString},
		{"[Unit] SigningCertificateV2: sha384 encoded", "sha384", tlv.TagSequence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, err := NewSigningCertificateV2Attr(s.Cert, tt.hash)
			if err != nil {
				t.Fatalf("NewSigningCertificateV2Attr() error = %v", err)
			}
			der := asn1der.MustEncode(attr)
			// Attribute / values SET / SigningCertificateV2 / certs / ESSCertIDv2 / first field
			off, err := tlv.Descend(der, 0, 1, 0, 0, 0, 0)
			if err != nil {
				t.Fatalf("Descend() error = %v", err)
			}
			if der[off] != tt.firstTag {
				t.Errorf("first ESSCertIDv2 field tag = 0x%02x, want 0x%02x", der[off], tt.firstTag)
			}
		})
	}
}

// =============================================================================
// [Unit] SignerInfo Tests
// =============================================================================

func newSignedInfo(t *testing.T, s *testSigner, eci *EncapsulatedContentInfo, hashName string) *SignerInfo {
	t.Helper()
	si := NewSignerInfo()
	if err := si.SetSignerIdentifier(s.Cert); err != nil {
		t.Fatalf("SetSignerIdentifier() error = %v", err)
	}
	if err := si.SetForContentAndHash(eci, hashName); err != nil {
		t.Fatalf("SetForContentAndHash() error = %v", err)
	}
	if err := si.Sign(s.Key, ""); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return si
}

func TestU_SignerInfo_SignOnce(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	eci := NewEncapsulatedContentInfo([]byte("content"), false)
	si := newSignedInfo(t, s, eci, "sha256")

	if si.SignatureAlgorithm() != "SHA256withECDSA" {
		t.Errorf("SignatureAlgorithm() = %s", si.SignatureAlgorithm())
	}
	if err := si.Sign(s.Key, ""); !errors.Is(err, ErrAlreadySigned) {
		t.Errorf("second Sign() error = %v, want ErrAlreadySigned", err)
	}
	if err := si.AddSignedAttribute(NewSigningTimeAttr(time.Now())); !errors.Is(err, ErrAlreadySigned) {
		t.Errorf("AddSignedAttribute() after Sign error = %v, want ErrAlreadySigned", err)
	}
}

func TestU_SignerInfo_MissingFields(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	eci := NewEncapsulatedContentInfo([]byte("content"), false)

	t.Run("[Unit] SignerInfo: no identifier", func(t *testing.T) {
		si := NewSignerInfo()
		_ = si.SetForContentAndHash(eci, "sha256")
		if err := si.Sign(s.Key, ""); !errors.Is(err, asn1der.ErrMissingField) {
			t.Errorf("Sign() error = %v, want ErrMissingField", err)
		}
	})

	t.Run("[Unit] SignerInfo: no message digest", func(t *testing.T) {
		si := NewSignerInfo()
		_ = si.SetSignerIdentifier(s.Cert)
		_ = si.SetDigestAlgorithm("sha256")
		ct, _ := NewContentTypeAttr("data")
		_ = si.AddSignedAttribute(ct)
		if err := si.Sign(s.Key, ""); !errors.Is(err, ErrMissingAttribute) {
			t.Errorf("Sign() error = %v, want ErrMissingAttribute", err)
		}
	})

	t.Run("[Unit] SignerInfo: encode before sign", func(t *testing.T) {
		si := NewSignerInfo()
		if _, err := si.Encode(); !errors.Is(err, asn1der.ErrMissingField) {
			t.Errorf("Encode() error = %v, want ErrMissingField", err)
		}
	})

	t.Run("[Unit] SignerInfo: unknown digest", func(t *testing.T) {
		if err := NewSignerInfo().SetDigestAlgorithm("md5"); err == nil {
			t.Error("SetDigestAlgorithm(md5) expected error")
		}
	})
}

func TestU_SignerInfo_UnsignedKeepsSignedBytes(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	eci := NewEncapsulatedContentInfo([]byte("content"), false)
	si := newSignedInfo(t, s, eci, "sha256")

	before := append([]byte{}, si.SignedAttributesDER()...)
	attr, err := NewAttribute("1.2.3.4", asn1der.NewInteger(7))
	if err != nil {
		t.Fatal(err)
	}
	si.AddUnsignedAttribute(attr)

	der, err := si.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(si.SignedAttributesDER(), before) {
		t.Error("signed attributes changed")
	}
	if !bytes.Contains(der, before[1:]) {
		t.Error("encoded SignerInfo does not carry the signed attribute bytes")
	}
	if der[len(der)-len(asn1der.MustEncode(attr))-2] != tagUnsigned {
		t.Error("unsigned attributes are not the last [1] field")
	}
}

// =============================================================================
// [Unit] SignedData Tests
// =============================================================================

func TestU_SignedData_DigestAlgorithmsUnion(t *testing.T) {
	s1 := generateECDSASigner(t, elliptic.P256())
	s2 := generateECDSASigner(t, elliptic.P384())

	tests := []struct {
		name  string
		hash1 string
		hash2 string
		want  int
	}{
		{"[Unit] SignedData: two hashes", "sha256", "sha384", 2},
		{"[Unit] SignedData: same hash", "sha256", "sha256", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eci := NewEncapsulatedContentInfo([]byte("multi"), false)
			sd := NewSignedData(eci)
			if err := sd.AddSignerInfo(newSignedInfo(t, s1, eci, tt.hash1)); err != nil {
				t.Fatal(err)
			}
			if err := sd.AddSignerInfo(newSignedInfo(t, s2, eci, tt.hash2)); err != nil {
				t.Fatal(err)
			}
			if got := len(sd.DigestAlgorithms()); got != tt.want {
				t.Errorf("len(DigestAlgorithms()) = %d, want %d", got, tt.want)
			}

			_ = sd.AddCertificate(s1.Cert.Raw())
			_ = sd.AddCertificate(s2.Cert.Raw())
			der, err := sd.EncodeContentInfo()
			if err != nil {
				t.Fatalf("EncodeContentInfo() error = %v", err)
			}
			p, err := ParseSignedData(der)
			if err != nil {
				t.Fatalf("ParseSignedData() error = %v", err)
			}
			if len(p.DigestAlgorithms) != tt.want || len(p.Signers) != 2 {
				t.Errorf("parsed %d digest algorithms, %d signers", len(p.DigestAlgorithms), len(p.Signers))
			}

			res, err := Verify(der, nil)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if !res.Valid() {
				t.Errorf("Verify() = %+v", res.Signers)
			}
		})
	}
}

func TestU_SignedData_DigestAlgorithmsIsolated(t *testing.T) {
	s1 := generateECDSASigner(t, elliptic.P256())
	s2 := generateECDSASigner(t, elliptic.P384())

	eci := NewEncapsulatedContentInfo([]byte("isolated"), false)
	sd := NewSignedData(eci)
	if err := sd.AddSignerInfo(newSignedInfo(t, s1, eci, "sha384")); err != nil {
		t.Fatal(err)
	}
	first := sd.DigestAlgorithms()
	first[0] = "md5"

	if err := sd.AddSignerInfo(newSignedInfo(t, s2, eci, "sha256")); err != nil {
		t.Fatal(err)
	}
	if first[0] != "md5" || len(first) != 1 {
		t.Errorf("earlier result changed to %v", first)
	}
	got := sd.DigestAlgorithms()
	if len(got) != 2 || got[0] != "sha384" || got[1] != "sha256" {
		t.Errorf("DigestAlgorithms() = %v, want [sha384 sha256]", got)
	}
}

func TestU_SignedData_Version(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())

	eci := NewEncapsulatedContentInfo([]byte("x"), false)
	sd := NewSignedData(eci)
	_ = sd.AddSignerInfo(newSignedInfo(t, s, eci, "sha256"))
	if sd.Version() != 1 {
		t.Errorf("id-data Version() = %d, want 1", sd.Version())
	}

	tst := &EncapsulatedContentInfo{ContentType: OIDTSTInfo, Content: []byte{0x30, 0x00}}
	if NewSignedData(tst).Version() != 3 {
		t.Error("non-data content should give version 3")
	}

	ski, _ := s.Cert.SubjectKeyIdentifier()
	si := NewSignerInfo()
	si.SetSubjectKeyIdentifier(ski)
	_ = si.SetForContentAndHash(eci, "sha256")
	if err := si.Sign(s.Key, ""); err != nil {
		t.Fatal(err)
	}
	sd2 := NewSignedData(eci)
	_ = sd2.AddSignerInfo(si)
	_ = sd2.AddCertificate(s.Cert.Raw())
	if sd2.Version() != 3 || si.Version() != 3 {
		t.Errorf("key identifier Version() = %d/%d, want 3/3", sd2.Version(), si.Version())
	}

	der, err := sd2.EncodeContentInfo()
	if err != nil {
		t.Fatal(err)
	}
	res, err := Verify(der, nil)
	if err != nil || !res.Valid() {
		t.Errorf("Verify(ski signer) = %+v, %v", res, err)
	}
}

func TestU_AddCertificate_Invalid(t *testing.T) {
	sd := NewSignedData(NewEncapsulatedContentInfo(nil, true))
	if err := sd.AddCertificate([]byte{0x02, 0x01, 0x01}); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("AddCertificate(INTEGER) error = %v", err)
	}
	if err := sd.AddCertificate([]byte{0x30, 0x05}); err == nil {
		t.Error("AddCertificate(truncated) expected error")
	}
}

// =============================================================================
// [Unit] Locate Tests
// =============================================================================

func TestU_LocateSignedData_Layout(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	eci := NewEncapsulatedContentInfo([]byte("located"), false)
	si := newSignedInfo(t, s, eci, "sha256")
	sd := NewSignedData(eci)
	_ = sd.AddSignerInfo(si)
	_ = sd.AddCertificate(s.Cert.Raw())
	der, err := sd.EncodeContentInfo()
	if err != nil {
		t.Fatal(err)
	}

	l, err := LocateSignedData(der)
	if err != nil {
		t.Fatalf("LocateSignedData() error = %v", err)
	}
	if hex.EncodeToString(l.Version.Bytes()) != "020101" {
		t.Errorf("Version = %x", l.Version.Bytes())
	}
	if l.Certificates.IsZero() || !l.CRLs.IsZero() {
		t.Error("expected certificates and no CRLs")
	}
	if len(l.Signers) != 1 {
		t.Fatalf("len(Signers) = %d", len(l.Signers))
	}
	sl := l.Signers[0]
	if !bytes.Equal(sl.SignedAttrsForVerify(), si.SignedAttributesDER()) {
		t.Error("located signed attributes differ from the signed bytes")
	}
	sigValue, _ := sl.Signature.Value()
	if !bytes.Equal(sigValue, si.Signature()) {
		t.Error("located signature differs")
	}
	if !sl.UnsignedAttrs.IsZero() {
		t.Error("unexpected unsigned attributes")
	}
	if sl.SignerInfo.End() != l.SignerInfos.End() || l.SignerInfos.End() != len(der) {
		t.Error("SignerInfo is not the last element")
	}
}

func TestU_LocateSignedData_Errors(t *testing.T) {
	dataCI, err := (&ContentInfo{ContentType: "data", Content: asn1der.NewOctetString([]byte("x"))}).Encode()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		der  []byte
		want error
	}{
		{"[Unit] LocateSignedData: not signedData", dataCI, ErrNotSignedData},
		{"[Unit] LocateSignedData: not a sequence", []byte{0x04, 0x00}, ErrInvalidContent},
		{"[Unit] LocateSignedData: truncated", []byte{0x30, 0x05, 0x06}, asn1der.ErrMalformedEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LocateSignedData(tt.der); !errors.Is(err, tt.want) {
				t.Errorf("LocateSignedData() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// =============================================================================
// Functional Tests: Sign and Verify
// =============================================================================

func TestF_SignVerify_Attached(t *testing.T) {
	tests := []struct {
		name   string
		signer func(t *testing.T) *testSigner
		alg    string
	}{
		{"[Functional] ECDSA P-256", func(t *testing.T) *testSigner { return generateECDSASigner(t, elliptic.P256()) }, "SHA256withECDSA"},
		{"[Functional] RSA", generateRSASigner, "SHA256withRSA"},
		{"[Functional] Ed25519", generateEd25519Signer, "Ed25519"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.signer(t)
			content := []byte("test content")
			der := signContent(t, s, content, false)

			p, err := ParseSignedData(der)
			if err != nil {
				t.Fatalf("ParseSignedData() error = %v", err)
			}
			if p.Detached || !bytes.Equal(p.Content, content) || p.ContentType != OIDData {
				t.Errorf("parsed content = %q detached=%v type=%s", p.Content, p.Detached, p.ContentType)
			}
			if len(p.Certificates) != 1 || !p.Signers[0].Matches(p.Certificates[0]) {
				t.Error("signer certificate not embedded or not matched")
			}

			res, err := Verify(der, nil)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if !res.Valid() {
				t.Errorf("Verify() = %+v", res.Signers[0])
			}
			if res.Signers[0].SignatureAlgorithm != tt.alg {
				t.Errorf("SignatureAlgorithm = %s, want %s", res.Signers[0].SignatureAlgorithm, tt.alg)
			}
			if !bytes.Equal(res.Content, content) {
				t.Errorf("Content = %q", res.Content)
			}
		})
	}
}

func TestF_SignVerify_Detached(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	content := []byte("detached content")
	der := signContent(t, s, content, true)

	p, err := ParseSignedData(der)
	if err != nil {
		t.Fatalf("ParseSignedData() error = %v", err)
	}
	if !p.Detached || p.Content != nil {
		t.Errorf("expected detached envelope, got content %q", p.Content)
	}

	if _, err := Verify(der, nil); !errors.Is(err, ErrDetachedContent) {
		t.Errorf("Verify(no data) error = %v, want ErrDetachedContent", err)
	}

	res, err := Verify(der, &VerifyConfig{Data: content})
	if err != nil || !res.Valid() {
		t.Errorf("Verify(data) = %+v, %v", res, err)
	}

	res, err = Verify(der, &VerifyConfig{Data: []byte("other content")})
	if err != nil {
		t.Fatalf("Verify(wrong data) error = %v", err)
	}
	if res.Valid() || res.Signers[0].DigestMatch || !res.Signers[0].SignatureValid {
		t.Errorf("Verify(wrong data) = %+v", res.Signers[0])
	}
}

func TestF_Verify_TamperedSignature(t *testing.T) {
	for _, s := range []*testSigner{generateECDSASigner(t, elliptic.P256()), generateEd25519Signer(t)} {
		der := signContent(t, s, []byte("payload"), false)
		l, err := LocateSignedData(der)
		if err != nil {
			t.Fatal(err)
		}
		tampered := append([]byte{}, der...)
		tampered[l.Signers[0].Signature.End()-1] ^= 0x01

		res, err := Verify(tampered, nil)
		if err != nil {
			t.Fatalf("Verify(tampered) error = %v", err)
		}
		if res.Valid() || res.Signers[0].SignatureValid {
			t.Error("tampered signature verified")
		}
	}
}

func TestF_Verify_TamperedContent(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	der := signContent(t, s, []byte("payload"), false)
	l, err := LocateSignedData(der)
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte{}, der...)
	tampered[l.EncapContentInfo.End()-1] ^= 0x01

	res, err := Verify(tampered, nil)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Signers[0].DigestMatch || !res.Signers[0].SignatureValid {
		t.Errorf("Verify(tampered content) = %+v", res.Signers[0])
	}
}

func TestF_Verify_CertificateLookup(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	der, err := Sign([]byte("no certs"), &SignerConfig{Certificate: s.Cert, Signer: s.Key})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(der, nil); !errors.Is(err, ErrNoCertificate) {
		t.Errorf("Verify(no certs) error = %v, want ErrNoCertificate", err)
	}
	res, err := Verify(der, &VerifyConfig{Certificates: []*x509cert.Certificate{s.Cert}})
	if err != nil || !res.Valid() {
		t.Errorf("Verify(external cert) = %+v, %v", res, err)
	}
}

func TestF_Sign_Attributes(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	signingTime := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	der, err := Sign([]byte("attrs"), &SignerConfig{
		Certificate:          s.Cert,
		Signer:               s.Key,
		Hash:                 "sha384",
		SigningTime:          signingTime,
		SigningCertificate:   true,
		SigningCertificateV2: true,
		IncludeCerts:         true,
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	p, err := ParseSignedData(der)
	if err != nil {
		t.Fatal(err)
	}
	si := p.Signers[0]
	for _, name := range []string{"contentType", "messageDigest", "signingTime", "signingCertificate", "signingCertificateV2"} {
		if si.SignedAttr(name) == nil {
			t.Errorf("signed attribute %s missing", name)
		}
	}
	if h, _ := si.DigestAlgorithm.HashName(); h != "sha384" {
		t.Errorf("digest algorithm = %s", h)
	}

	res, err := Verify(der, nil)
	if err != nil || !res.Valid() {
		t.Fatalf("Verify() = %+v, %v", res, err)
	}
	if !res.Signers[0].SigningTime.Equal(signingTime) {
		t.Errorf("SigningTime = %v, want %v", res.Signers[0].SigningTime, signingTime)
	}

	noTime, err := Sign([]byte("attrs"), &SignerConfig{Certificate: s.Cert, Signer: s.Key, OmitSigningTime: true})
	if err != nil {
		t.Fatal(err)
	}
	p, _ = ParseSignedData(noTime)
	if _, ok, _ := p.Signers[0].SigningTime(); ok {
		t.Error("signingTime present with OmitSigningTime")
	}
}

func TestF_Sign_ConfigErrors(t *testing.T) {
	s := generateECDSASigner(t, elliptic.P256())
	if _, err := Sign(nil, &SignerConfig{Signer: s.Key}); err == nil {
		t.Error("Sign() without certificate expected error")
	}
	if _, err := Sign(nil, &SignerConfig{Certificate: s.Cert}); err == nil {
		t.Error("Sign() without signer expected error")
	}
	if _, err := Sign(nil, &SignerConfig{Certificate: s.Cert, Signer: s.Key, SignatureAlgorithm: "SHA256withRSA"}); err == nil {
		t.Error("Sign() with mismatched algorithm expected error")
	}
}
