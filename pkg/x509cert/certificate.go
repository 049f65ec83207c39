// Package x509cert reads X.509 certificates by structural position.
//
// Parse locates every top-level field of the certificate with the TLV
// decoder and decodes only the names and validity times. The extension
// list is indexed on first use; each named accessor then decodes only its
// own extension value and returns a nil result when the extension is not
// present.
package x509cert

import (
	"bytes"
	"crypto"
	"encoding/hex"
	"encoding/pem"
	"math/big"
	"sync"
	"time"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/tlv"
	"github.com/remiblancher/qasn1/pkg/x509name"
)

// Certificate is a parsed certificate. It is immutable; every Span
// references the certificate's own buffer.
type Certificate struct {
	raw []byte

	version   int
	tbs       tlv.Span
	serial    tlv.Span
	tbsSigAlg qcrypto.AlgorithmIdentifier
	issuer    tlv.Span
	subject   tlv.Span
	spki      tlv.Span
	extBlock  tlv.Span // the [3] wrapper, zero when absent
	sigAlg    qcrypto.AlgorithmIdentifier
	sigValue  []byte

	issuerName  x509name.Name
	subjectName x509name.Name
	notBefore   *asn1der.Time
	notAfter    *asn1der.Time

	extOnce sync.Once
	exts    []Extension
	extErr  error
}

// Parse reads a DER certificate. The buffer is retained, not copied.
func Parse(der []byte) (*Certificate, error) {
	info, err := tlv.Header(der, 0)
	if err != nil {
		return nil, parseErr("certificate", err)
	}
	if info.Tag != tlv.TagSequence {
		return nil, malformed("certificate", "outer tag 0x%02x is not a SEQUENCE", info.Tag)
	}
	if info.End() != len(der) {
		return nil, malformed("certificate", "%d trailing bytes", len(der)-info.End())
	}

	top, err := tlv.Children(der, 0)
	if err != nil {
		return nil, parseErr("certificate", err)
	}
	if len(top) != 3 {
		return nil, malformed("certificate", "expected 3 elements, got %d", len(top))
	}

	c := &Certificate{raw: der, version: 1}
	if c.tbs, err = tlv.SpanOf(der, top[0]); err != nil {
		return nil, parseErr("tbsCertificate", err)
	}
	if c.tbs.Tag() != tlv.TagSequence {
		return nil, malformed("tbsCertificate", "not a SEQUENCE")
	}
	if err := c.parseTBS(top[0]); err != nil {
		return nil, err
	}

	if c.sigAlg, err = qcrypto.ParseAlgorithmIdentifier(der, top[1]); err != nil {
		return nil, parseErr("signatureAlgorithm", err)
	}
	if der[top[2]] != tlv.TagBitString {
		return nil, malformed("signatureValue", "not a BIT STRING")
	}
	sig, err := tlv.Value(der, top[2])
	if err != nil {
		return nil, parseErr("signatureValue", err)
	}
	if len(sig) == 0 || sig[0] != 0 {
		return nil, malformed("signatureValue", "signature must have no unused bits")
	}
	c.sigValue = sig[1:]
	return c, nil
}

func (c *Certificate) parseTBS(off int) error {
	der := c.raw
	fields, err := tlv.Children(der, off)
	if err != nil {
		return parseErr("tbsCertificate", err)
	}

	i := 0
	if len(fields) > 0 && der[fields[0]] == tlv.ClassContext|tlv.Constructed|0 {
		v, err := tlv.Child(der, fields[0], 0)
		if err != nil {
			return parseErr("version", err)
		}
		content, err := tlv.Value(der, v)
		if err != nil || der[v] != tlv.TagInteger || len(content) != 1 || content[0] > 2 {
			return malformed("version", "bad version")
		}
		c.version = int(content[0]) + 1
		i++
	}
	if len(fields) < i+6 {
		return malformed("tbsCertificate", "expected at least %d fields, got %d", i+6, len(fields))
	}

	if der[fields[i]] != tlv.TagInteger {
		return malformed("serialNumber", "not an INTEGER")
	}
	if c.serial, err = tlv.SpanOf(der, fields[i]); err != nil {
		return parseErr("serialNumber", err)
	}
	if c.tbsSigAlg, err = qcrypto.ParseAlgorithmIdentifier(der, fields[i+1]); err != nil {
		return parseErr("signature", err)
	}

	if c.issuer, err = tlv.SpanOf(der, fields[i+2]); err != nil {
		return parseErr("issuer", err)
	}
	if c.issuerName, err = x509name.DecodeAt(der, fields[i+2]); err != nil {
		return parseErr("issuer", err)
	}

	if err := c.parseValidity(fields[i+3]); err != nil {
		return err
	}

	if c.subject, err = tlv.SpanOf(der, fields[i+4]); err != nil {
		return parseErr("subject", err)
	}
	if c.subjectName, err = x509name.DecodeAt(der, fields[i+4]); err != nil {
		return parseErr("subject", err)
	}

	if der[fields[i+5]] != tlv.TagSequence {
		return malformed("subjectPublicKeyInfo", "not a SEQUENCE")
	}
	if c.spki, err = tlv.SpanOf(der, fields[i+5]); err != nil {
		return parseErr("subjectPublicKeyInfo", err)
	}

	// issuerUniqueID [1] and subjectUniqueID [2] are skipped.
	for _, f := range fields[i+6:] {
		switch der[f] {
		case tlv.ClassContext | 1, tlv.ClassContext | 2:
		case tlv.ClassContext | tlv.Constructed | 3:
			if c.extBlock, err = tlv.SpanOf(der, f); err != nil {
				return parseErr("extensions", err)
			}
		default:
			return malformed("tbsCertificate", "unexpected field tag 0x%02x", der[f])
		}
	}
	return nil
}

func (c *Certificate) parseValidity(off int) error {
	der := c.raw
	if der[off] != tlv.TagSequence {
		return malformed("validity", "not a SEQUENCE")
	}
	kids, err := tlv.Children(der, off)
	if err != nil {
		return parseErr("validity", err)
	}
	if len(kids) != 2 {
		return malformed("validity", "expected 2 times, got %d", len(kids))
	}
	times := make([]*asn1der.Time, 2)
	for n, k := range kids {
		v, err := asn1der.Parse(mustTLV(der, k))
		if err != nil {
			return parseErr("validity", err)
		}
		t, ok := v.(*asn1der.Time)
		if !ok {
			return malformed("validity", "tag 0x%02x is not a time", der[k])
		}
		times[n] = t
	}
	c.notBefore, c.notAfter = times[0], times[1]
	return nil
}

// mustTLV returns the TLV at off; Children has already bounds-checked it.
func mustTLV(der []byte, off int) []byte {
	b, _ := tlv.TLV(der, off)
	return b
}

// ParsePEM reads the first CERTIFICATE block of PEM input.
func ParsePEM(data []byte) (*Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, &CertError{Op: "parse", Err: ErrNoPEMCertificate}
		}
		if block.Type == "CERTIFICATE" {
			return Parse(block.Bytes)
		}
	}
}

// ParseHex reads a hex-encoded DER certificate.
func ParseHex(s string) (*Certificate, error) {
	der, err := hex.DecodeString(s)
	if err != nil {
		return nil, malformed("certificate", "bad hex: %v", err)
	}
	return Parse(der)
}

// Clone returns a certificate over a private copy of the buffer. Spans in
// the clone reference the copy.
func (c *Certificate) Clone() *Certificate {
	cp, err := Parse(bytes.Clone(c.raw))
	if err != nil {
		// The buffer parsed once already.
		panic(err)
	}
	return cp
}

// Raw returns the complete DER encoding.
func (c *Certificate) Raw() []byte { return c.raw }

// RawTBS returns the tbsCertificate bytes covered by the signature.
func (c *Certificate) RawTBS() []byte { return c.tbs.Bytes() }

// Version returns the certificate version (1, 2 or 3).
func (c *Certificate) Version() int { return c.version }

// SerialHex returns the serial number's content octets in hex, exactly as
// encoded (e.g. "02", "00abcd").
func (c *Certificate) SerialHex() string {
	v, _ := c.serial.Value()
	return hex.EncodeToString(v)
}

// RawSerialNumber returns the serialNumber INTEGER TLV as encoded.
func (c *Certificate) RawSerialNumber() []byte { return c.serial.Bytes() }

// SerialNumber returns the serial number.
func (c *Certificate) SerialNumber() *big.Int {
	v, _ := asn1der.Parse(c.serial.Bytes())
	if i, ok := v.(*asn1der.Integer); ok {
		return i.Big()
	}
	return new(big.Int)
}

// SignatureAlgorithm returns the name of the tbsCertificate signature
// algorithm, or its dotted OID when the algorithm is unknown.
func (c *Certificate) SignatureAlgorithm() string { return c.tbsSigAlg.Name() }

// OuterSignatureAlgorithm returns the certificate's outer signatureAlgorithm
// identifier.
func (c *Certificate) OuterSignatureAlgorithm() qcrypto.AlgorithmIdentifier { return c.sigAlg }

// Issuer returns the decoded issuer name.
func (c *Certificate) Issuer() x509name.Name { return c.issuerName }

// IssuerString returns the issuer in "/type=value" form.
func (c *Certificate) IssuerString() string { return c.issuerName.String() }

// RawIssuer returns the issuer Name TLV.
func (c *Certificate) RawIssuer() []byte { return c.issuer.Bytes() }

// Subject returns the decoded subject name.
func (c *Certificate) Subject() x509name.Name { return c.subjectName }

// SubjectString returns the subject in "/type=value" form.
func (c *Certificate) SubjectString() string { return c.subjectName.String() }

// RawSubject returns the subject Name TLV.
func (c *Certificate) RawSubject() []byte { return c.subject.Bytes() }

// NotBefore returns the notBefore time string as encoded, e.g. "200101000000Z".
func (c *Certificate) NotBefore() string { return c.notBefore.String() }

// NotAfter returns the notAfter time string as encoded.
func (c *Certificate) NotAfter() string { return c.notAfter.String() }

// NotBeforeTime returns notBefore as a time.Time.
func (c *Certificate) NotBeforeTime() time.Time {
	t, _ := c.notBefore.Time()
	return t
}

// NotAfterTime returns notAfter as a time.Time.
func (c *Certificate) NotAfterTime() time.Time {
	t, _ := c.notAfter.Time()
	return t
}

// RawSubjectPublicKeyInfo returns the SubjectPublicKeyInfo TLV.
func (c *Certificate) RawSubjectPublicKeyInfo() []byte { return c.spki.Bytes() }

// PublicKeyAlgorithm returns the SPKI algorithm name or dotted OID.
func (c *Certificate) PublicKeyAlgorithm() string {
	off, err := tlv.Child(c.raw, c.spki.Off, 0)
	if err != nil {
		return ""
	}
	a, err := qcrypto.ParseAlgorithmIdentifier(c.raw, off)
	if err != nil {
		return ""
	}
	return a.Name()
}

// PublicKey decodes the subject public key.
func (c *Certificate) PublicKey() (crypto.PublicKey, error) {
	pub, err := qcrypto.ParsePublicKey(c.spki.Bytes())
	if err != nil {
		return nil, &CertError{Op: "parse", Field: "subjectPublicKeyInfo", Err: err}
	}
	return pub, nil
}

// SignatureValue returns the signature bytes.
func (c *Certificate) SignatureValue() []byte { return c.sigValue }

// SignatureValueHex returns the signature in hex.
func (c *Certificate) SignatureValueHex() string { return hex.EncodeToString(c.sigValue) }
