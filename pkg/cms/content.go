package cms

import (
	"fmt"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// EncapsulatedContentInfo represents the content being signed (RFC 5652 Section 5.2).
//
// Content is always held so the message digest can be computed. When
// Detached is true it is left out of the encoding.
type EncapsulatedContentInfo struct {
	ContentType string // dotted OID, id-data when empty
	Content     []byte
	Detached    bool
}

var _ asn1der.Value = (*EncapsulatedContentInfo)(nil)

// NewEncapsulatedContentInfo returns an id-data content info.
func NewEncapsulatedContentInfo(content []byte, detached bool) *EncapsulatedContentInfo {
	return &EncapsulatedContentInfo{ContentType: OIDData, Content: content, Detached: detached}
}

func (e *EncapsulatedContentInfo) contentType() (string, error) {
	if e.ContentType == "" {
		return OIDData, nil
	}
	dotted, ok := oid.Resolve(e.ContentType)
	if !ok {
		return "", fmt.Errorf("%w: content type %s", asn1der.ErrUnsupportedType, e.ContentType)
	}
	return dotted, nil
}

// Digest returns the digest of the content with the named hash.
func (e *EncapsulatedContentInfo) Digest(hashName string) ([]byte, error) {
	return qcrypto.Digest(hashName, e.Content)
}

// Tag returns the SEQUENCE tag.
func (e *EncapsulatedContentInfo) Tag() byte { return tlv.TagSequence }

// Encode returns the DER encoding.
//
//	EncapsulatedContentInfo ::= SEQUENCE {
//	  eContentType ContentType,
//	  eContent [0] EXPLICIT OCTET STRING OPTIONAL }
func (e *EncapsulatedContentInfo) Encode() ([]byte, error) {
	ct, err := e.contentType()
	if err != nil {
		return nil, NewCMSError("encode", err)
	}
	o, err := asn1der.NewObjectIdentifier(ct)
	if err != nil {
		return nil, err
	}
	seq := asn1der.NewSequence(o)
	if !e.Detached {
		seq.Append(asn1der.MustExplicit(0, asn1der.NewOctetString(e.Content)))
	}
	return seq.Encode()
}

// ContentInfo represents the top-level CMS structure (RFC 5652 Section 3).
type ContentInfo struct {
	ContentType string // dotted OID
	Content     asn1der.Value
}

var _ asn1der.Value = (*ContentInfo)(nil)

// Tag returns the SEQUENCE tag.
func (c *ContentInfo) Tag() byte { return tlv.TagSequence }

// Encode returns SEQUENCE { contentType, [0] EXPLICIT content }.
func (c *ContentInfo) Encode() ([]byte, error) {
	if c.Content == nil {
		return nil, NewCMSError("encode", fmt.Errorf("%w: ContentInfo content", asn1der.ErrMissingField))
	}
	o, err := asn1der.NewObjectIdentifierName(c.ContentType)
	if err != nil {
		return nil, NewCMSError("encode", err)
	}
	return asn1der.NewSequence(o, asn1der.MustExplicit(0, c.Content)).Encode()
}
