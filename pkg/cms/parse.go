package cms

import (
	"bytes"
	"fmt"
	"time"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/tlv"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// ParsedSignedData is the decoded view of an encoded SignedData.
type ParsedSignedData struct {
	Layout *SignedDataLayout

	Version          int
	DigestAlgorithms []qcrypto.AlgorithmIdentifier
	ContentType      string
	Content          []byte // nil when detached
	Detached         bool
	Certificates     []*x509cert.Certificate
	CRLs             [][]byte
	Signers          []*ParsedSignerInfo
}

// ParsedSignerInfo is the decoded view of one SignerInfo.
type ParsedSignerInfo struct {
	Layout SignerInfoLayout

	Version            int
	Issuer             []byte // Name TLV, nil for a key identifier
	SerialNumber       []byte // INTEGER TLV, nil for a key identifier
	SubjectKeyID       []byte
	DigestAlgorithm    qcrypto.AlgorithmIdentifier
	SignedAttrs        []*Attribute
	SignatureAlgorithm qcrypto.AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      []*Attribute
}

// ParseSignedData parses a ContentInfo holding SignedData.
func ParseSignedData(der []byte) (*ParsedSignedData, error) {
	l, err := LocateSignedData(der)
	if err != nil {
		return nil, err
	}
	p := &ParsedSignedData{Layout: l}

	if p.Version, err = smallInt(l.Version); err != nil {
		return nil, NewCMSError("parse", err)
	}

	algs, err := tlv.Children(der, l.DigestAlgorithms.Off)
	if err != nil {
		return nil, NewCMSError("parse", err)
	}
	for _, off := range algs {
		a, err := qcrypto.ParseAlgorithmIdentifier(der, off)
		if err != nil {
			return nil, NewCMSError("parse", err)
		}
		p.DigestAlgorithms = append(p.DigestAlgorithms, a)
	}

	if err := p.parseEncapContentInfo(); err != nil {
		return nil, err
	}

	if !l.Certificates.IsZero() {
		kids, err := tlv.Children(der, l.Certificates.Off)
		if err != nil {
			return nil, NewCMSError("parse", err)
		}
		for _, off := range kids {
			// Attribute and other certificate formats are skipped.
			if der[off] != tlv.TagSequence {
				continue
			}
			b, _ := tlv.TLV(der, off)
			c, err := x509cert.Parse(b)
			if err != nil {
				return nil, NewCMSError("parse", err)
			}
			p.Certificates = append(p.Certificates, c)
		}
	}
	if !l.CRLs.IsZero() {
		kids, err := tlv.Children(der, l.CRLs.Off)
		if err != nil {
			return nil, NewCMSError("parse", err)
		}
		for _, off := range kids {
			b, _ := tlv.TLV(der, off)
			p.CRLs = append(p.CRLs, b)
		}
	}

	for i, sl := range l.Signers {
		si, err := parseSignerInfo(der, sl)
		if err != nil {
			return nil, NewCMSError("parse", fmt.Errorf("signerInfo %d: %w", i, err))
		}
		p.Signers = append(p.Signers, si)
	}
	return p, nil
}

func (p *ParsedSignedData) parseEncapContentInfo() error {
	der := p.Layout.Buf
	kids, err := tlv.Children(der, p.Layout.EncapContentInfo.Off)
	if err != nil {
		return NewCMSError("parse", err)
	}
	if len(kids) == 0 || len(kids) > 2 || der[kids[0]] != tlv.TagOID {
		return NewCMSError("parse", fmt.Errorf("%w: bad EncapsulatedContentInfo", ErrInvalidContent))
	}
	content, _ := tlv.Value(der, kids[0])
	if p.ContentType, err = asn1der.DecodeOIDContent(content); err != nil {
		return NewCMSError("parse", err)
	}
	if len(kids) == 1 {
		p.Detached = true
		return nil
	}

	if der[kids[1]] != tlv.ClassContext|tlv.Constructed|0 {
		return NewCMSError("parse", fmt.Errorf("%w: eContent tag 0x%02x", ErrInvalidContent, der[kids[1]]))
	}
	octets, err := tlv.Child(der, kids[1], 0)
	if err != nil {
		return NewCMSError("parse", err)
	}
	if der[octets] != tlv.TagOctetString {
		return NewCMSError("parse", fmt.Errorf("%w: eContent is not an OCTET STRING", ErrInvalidContent))
	}
	p.Content, _ = tlv.Value(der, octets)
	return nil
}

func parseSignerInfo(der []byte, sl SignerInfoLayout) (*ParsedSignerInfo, error) {
	si := &ParsedSignerInfo{Layout: sl}
	var err error
	if si.Version, err = smallInt(sl.Version); err != nil {
		return nil, err
	}

	if sl.SID.Tag() == tagSubjectKeyID {
		if si.SubjectKeyID, err = sl.SID.Value(); err != nil {
			return nil, err
		}
	} else {
		parts, err := tlv.Children(der, sl.SID.Off)
		if err != nil {
			return nil, err
		}
		if len(parts) != 2 || der[parts[0]] != tlv.TagSequence || der[parts[1]] != tlv.TagInteger {
			return nil, fmt.Errorf("%w: bad IssuerAndSerialNumber", ErrInvalidContent)
		}
		si.Issuer, _ = tlv.TLV(der, parts[0])
		si.SerialNumber, _ = tlv.TLV(der, parts[1])
	}

	if si.DigestAlgorithm, err = qcrypto.ParseAlgorithmIdentifier(der, sl.DigestAlgorithm.Off); err != nil {
		return nil, err
	}
	if si.SignatureAlgorithm, err = qcrypto.ParseAlgorithmIdentifier(der, sl.SignatureAlgorithm.Off); err != nil {
		return nil, err
	}
	if si.Signature, err = sl.Signature.Value(); err != nil {
		return nil, err
	}
	if si.SignedAttrs, err = parseAttributes(der, sl.SignedAttrs); err != nil {
		return nil, err
	}
	if si.UnsignedAttrs, err = parseAttributes(der, sl.UnsignedAttrs); err != nil {
		return nil, err
	}
	return si, nil
}

func parseAttributes(der []byte, s tlv.Span) ([]*Attribute, error) {
	if s.IsZero() {
		return nil, nil
	}
	kids, err := tlv.Children(der, s.Off)
	if err != nil {
		return nil, err
	}
	attrs := make([]*Attribute, 0, len(kids))
	for _, off := range kids {
		b, _ := tlv.TLV(der, off)
		a, err := ParseAttribute(b)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func smallInt(s tlv.Span) (int, error) {
	v, err := asn1der.Parse(s.Bytes())
	if err != nil {
		return 0, err
	}
	i, ok := v.(*asn1der.Integer)
	if !ok || !i.Big().IsInt64() || i.Big().Int64() > 1<<16 {
		return 0, fmt.Errorf("%w: version out of range", ErrInvalidContent)
	}
	return int(i.Big().Int64()), nil
}

// SignedAttr returns the first signed attribute of the given type, or nil.
func (si *ParsedSignerInfo) SignedAttr(attrType string) *Attribute {
	return NewAttributeListUnsorted(si.SignedAttrs...).Get(attrType)
}

// UnsignedAttr returns the first unsigned attribute of the given type, or nil.
func (si *ParsedSignerInfo) UnsignedAttr(attrType string) *Attribute {
	return NewAttributeListUnsorted(si.UnsignedAttrs...).Get(attrType)
}

// firstValue returns the content octets of an attribute's first value
// after checking its tag.
func firstValue(a *Attribute, tag byte) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	if len(a.Values) == 0 {
		return nil, fmt.Errorf("%w: %s has no value", ErrInvalidContent, a.Name())
	}
	b, err := a.Values[0].Encode()
	if err != nil {
		return nil, err
	}
	if b[0] != tag {
		return nil, fmt.Errorf("%w: %s value has tag 0x%02x", ErrInvalidContent, a.Name(), b[0])
	}
	return tlv.Value(b, 0)
}

// MessageDigest returns the message-digest attribute value, or nil.
func (si *ParsedSignerInfo) MessageDigest() ([]byte, error) {
	return firstValue(si.SignedAttr(OIDMessageDigest), tlv.TagOctetString)
}

// ContentType returns the content-type attribute value, or "".
func (si *ParsedSignerInfo) ContentType() (string, error) {
	v, err := firstValue(si.SignedAttr(OIDContentType), tlv.TagOID)
	if err != nil || v == nil {
		return "", err
	}
	return asn1der.DecodeOIDContent(v)
}

// SigningTime returns the signing-time attribute value. The boolean is
// false when the attribute is absent.
func (si *ParsedSignerInfo) SigningTime() (time.Time, bool, error) {
	a := si.SignedAttr(OIDSigningTime)
	if a == nil || len(a.Values) == 0 {
		return time.Time{}, false, nil
	}
	b, err := a.Values[0].Encode()
	if err != nil {
		return time.Time{}, false, err
	}
	v, err := asn1der.Parse(b)
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok := v.(*asn1der.Time)
	if !ok {
		return time.Time{}, false, fmt.Errorf("%w: signingTime is not a time", ErrInvalidContent)
	}
	tt, err := t.Time()
	return tt, err == nil, err
}

// Matches reports whether cert is the certificate the signer identifier names.
func (si *ParsedSignerInfo) Matches(cert *x509cert.Certificate) bool {
	if si.SubjectKeyID != nil {
		ski, err := cert.SubjectKeyIdentifier()
		return err == nil && ski != nil && bytes.Equal(ski, si.SubjectKeyID)
	}
	return bytes.Equal(si.Issuer, cert.RawIssuer()) && bytes.Equal(si.SerialNumber, cert.RawSerialNumber())
}
