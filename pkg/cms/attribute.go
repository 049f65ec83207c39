package cms

import (
	"fmt"
	"time"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/tlv"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// Attribute represents a CMS attribute (RFC 5652 Section 5.3).
//
//	Attribute ::= SEQUENCE {
//	  attrType   OBJECT IDENTIFIER,
//	  attrValues SET OF AttributeValue }
type Attribute struct {
	Type   string // dotted OID
	Values []asn1der.Value
}

var _ asn1der.Value = (*Attribute)(nil)

// NewAttribute creates an attribute. attrType is a registered name or a
// dotted OID.
func NewAttribute(attrType string, values ...asn1der.Value) (*Attribute, error) {
	dotted, ok := oid.Resolve(attrType)
	if !ok {
		return nil, NewCMSError("attribute", fmt.Errorf("%w: %s", asn1der.ErrUnsupportedType, attrType))
	}
	if len(values) == 0 {
		return nil, NewCMSError("attribute", fmt.Errorf("%w: %s has no values", asn1der.ErrMissingField, oid.NameOrOID(dotted)))
	}
	return &Attribute{Type: dotted, Values: values}, nil
}

// Name returns the registered attribute name or the dotted OID.
func (a *Attribute) Name() string { return oid.NameOrOID(a.Type) }

// Tag returns the SEQUENCE tag.
func (a *Attribute) Tag() byte { return tlv.TagSequence }

// Encode returns the DER encoding.
func (a *Attribute) Encode() ([]byte, error) {
	if len(a.Values) == 0 {
		return nil, NewCMSError("encode", fmt.Errorf("%w: attribute %s has no values", asn1der.ErrMissingField, a.Name()))
	}
	o, err := asn1der.NewObjectIdentifier(a.Type)
	if err != nil {
		return nil, err
	}
	return asn1der.NewSequence(o, asn1der.NewSet(a.Values...)).Encode()
}

// ParseAttribute reads one encoded Attribute. Values are kept as their
// original TLVs.
func ParseAttribute(der []byte) (*Attribute, error) {
	if err := tlv.Check(der); err != nil {
		return nil, NewCMSError("parse", err)
	}
	kids, err := tlv.Children(der, 0)
	if err != nil {
		return nil, NewCMSError("parse", err)
	}
	if der[0] != tlv.TagSequence || len(kids) != 2 || der[kids[0]] != tlv.TagOID || der[kids[1]] != tlv.TagSet {
		return nil, NewCMSError("parse", fmt.Errorf("%w: bad Attribute", ErrInvalidContent))
	}
	content, err := tlv.Value(der, kids[0])
	if err != nil {
		return nil, NewCMSError("parse", err)
	}
	dotted, err := asn1der.DecodeOIDContent(content)
	if err != nil {
		return nil, NewCMSError("parse", err)
	}

	a := &Attribute{Type: dotted}
	vals, err := tlv.Children(der, kids[1])
	if err != nil {
		return nil, NewCMSError("parse", err)
	}
	for _, v := range vals {
		b, err := tlv.TLV(der, v)
		if err != nil {
			return nil, NewCMSError("parse", err)
		}
		raw, err := asn1der.NewRaw(b)
		if err != nil {
			return nil, NewCMSError("parse", err)
		}
		a.Values = append(a.Values, raw)
	}
	return a, nil
}

// NewContentTypeAttr creates a content-type attribute.
func NewContentTypeAttr(contentType string) (*Attribute, error) {
	o, err := asn1der.NewObjectIdentifierName(contentType)
	if err != nil {
		return nil, NewCMSError("attribute", err)
	}
	return &Attribute{Type: OIDContentType, Values: []asn1der.Value{o}}, nil
}

// NewMessageDigestAttr creates a message-digest attribute.
func NewMessageDigestAttr(digest []byte) *Attribute {
	return &Attribute{Type: OIDMessageDigest, Values: []asn1der.Value{asn1der.NewOctetString(digest)}}
}

// NewSigningTimeAttr creates a signing-time attribute. Dates in 1950
// through 2049 are encoded as UTCTime, others as GeneralizedTime.
func NewSigningTimeAttr(t time.Time) *Attribute {
	return &Attribute{Type: OIDSigningTime, Values: []asn1der.Value{asn1der.NewTimeAuto(t.UTC())}}
}

// NewSigningCertificateAttr creates a signing-certificate attribute
// (RFC 2634) holding a SHA-1 ESSCertID for cert.
func NewSigningCertificateAttr(cert *x509cert.Certificate) (*Attribute, error) {
	h, err := qcrypto.Digest("sha1", cert.Raw())
	if err != nil {
		return nil, NewCMSError("attribute", err)
	}
	issuerSerial, err := NewIssuerSerial(cert)
	if err != nil {
		return nil, err
	}
	essCertID := asn1der.NewSequence(asn1der.NewOctetString(h), issuerSerial)
	signingCert := asn1der.NewSequence(asn1der.NewSequence(essCertID))
	return &Attribute{Type: OIDSigningCertificate, Values: []asn1der.Value{signingCert}}, nil
}

// NewSigningCertificateV2Attr creates a signing-certificate-v2 attribute
// (RFC 5035). An empty hashName selects sha256, which is the DEFAULT and
// therefore omitted from the encoding.
func NewSigningCertificateV2Attr(cert *x509cert.Certificate, hashName string) (*Attribute, error) {
	if hashName == "" {
		hashName = "sha256"
	}
	h, err := qcrypto.Digest(hashName, cert.Raw())
	if err != nil {
		return nil, NewCMSError("attribute", err)
	}
	issuerSerial, err := NewIssuerSerial(cert)
	if err != nil {
		return nil, err
	}

	essCertIDv2 := asn1der.NewSequence()
	if hashName != "sha256" {
		algID, err := qcrypto.DigestAlgorithmIdentifier(hashName)
		if err != nil {
			return nil, NewCMSError("attribute", err)
		}
		essCertIDv2.Append(algID)
	}
	essCertIDv2.Append(asn1der.NewOctetString(h), issuerSerial)

	signingCert := asn1der.NewSequence(asn1der.NewSequence(essCertIDv2))
	return &Attribute{Type: OIDSigningCertificateV2, Values: []asn1der.Value{signingCert}}, nil
}

// NewIssuerSerial builds the ESS IssuerSerial with the issuer as a single
// directoryName GeneralName.
func NewIssuerSerial(cert *x509cert.Certificate) (*asn1der.Sequence, error) {
	issuer, err := asn1der.NewRaw(cert.RawIssuer())
	if err != nil {
		return nil, NewCMSError("attribute", err)
	}
	serial, err := asn1der.NewRaw(cert.RawSerialNumber())
	if err != nil {
		return nil, NewCMSError("attribute", err)
	}
	generalNames := asn1der.NewSequence(asn1der.MustExplicit(4, issuer))
	return asn1der.NewSequence(generalNames, serial), nil
}

// NewIssuerAndSerialNumber returns the IssuerAndSerialNumber identifying
// cert, copied byte for byte from the certificate.
func NewIssuerAndSerialNumber(cert *x509cert.Certificate) (*asn1der.Sequence, error) {
	issuer, err := asn1der.NewRaw(cert.RawIssuer())
	if err != nil {
		return nil, NewCMSError("sid", err)
	}
	serial, err := asn1der.NewRaw(cert.RawSerialNumber())
	if err != nil {
		return nil, NewCMSError("sid", err)
	}
	return asn1der.NewSequence(issuer, serial), nil
}

// AttributeList is a SET OF Attribute. It encodes in DER order unless
// created unsorted, in which case insertion order is kept.
type AttributeList struct {
	attrs    []*Attribute
	unsorted bool
}

var _ asn1der.Value = (*AttributeList)(nil)

// NewAttributeList returns a sorted attribute list.
func NewAttributeList(attrs ...*Attribute) *AttributeList {
	return &AttributeList{attrs: attrs}
}

// NewAttributeListUnsorted returns a list that encodes in insertion order.
func NewAttributeListUnsorted(attrs ...*Attribute) *AttributeList {
	return &AttributeList{attrs: attrs, unsorted: true}
}

// Add appends attributes.
func (l *AttributeList) Add(attrs ...*Attribute) { l.attrs = append(l.attrs, attrs...) }

// Set replaces the first attribute of the same type, or appends a.
func (l *AttributeList) Set(a *Attribute) {
	for i, cur := range l.attrs {
		if cur.Type == a.Type {
			l.attrs[i] = a
			return
		}
	}
	l.attrs = append(l.attrs, a)
}

// Get returns the first attribute of the given type, or nil.
func (l *AttributeList) Get(attrType string) *Attribute {
	if l == nil {
		return nil
	}
	dotted, _ := oid.Resolve(attrType)
	for _, a := range l.attrs {
		if a.Type == dotted {
			return a
		}
	}
	return nil
}

// Len returns the number of attributes.
func (l *AttributeList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.attrs)
}

// Attributes returns the attributes in insertion order.
func (l *AttributeList) Attributes() []*Attribute {
	if l == nil {
		return nil
	}
	return l.attrs
}

// Sorted reports whether the list encodes in DER order.
func (l *AttributeList) Sorted() bool { return !l.unsorted }

// Tag returns the SET tag.
func (l *AttributeList) Tag() byte { return tlv.TagSet }

// Encode returns the SET OF Attribute encoding.
func (l *AttributeList) Encode() ([]byte, error) {
	vals := make([]asn1der.Value, len(l.attrs))
	for i, a := range l.attrs {
		vals[i] = a
	}
	if l.unsorted {
		return asn1der.NewSetUnsorted(vals...).Encode()
	}
	return asn1der.NewSet(vals...).Encode()
}
