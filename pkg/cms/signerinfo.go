package cms

import (
	"crypto"
	"fmt"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/tlv"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// SignerInfo is one signer's contribution to a SignedData (RFC 5652 Section 5.3).
//
// The signed attributes are frozen by Sign: their DER encoding is kept
// and reused by every later Encode, so adding unsigned attributes never
// disturbs the signed bytes.
type SignerInfo struct {
	sid      asn1der.Value
	version  int
	hashName string

	signedAttrs   *AttributeList
	unsignedAttrs *AttributeList

	sigAlg    string
	signedDER []byte // SET OF Attribute as signed, nil until Sign
	signature []byte
}

var _ asn1der.Value = (*SignerInfo)(nil)

// NewSignerInfo returns an empty SignerInfo.
func NewSignerInfo() *SignerInfo {
	return &SignerInfo{
		version:       1,
		signedAttrs:   NewAttributeList(),
		unsignedAttrs: NewAttributeList(),
	}
}

// SetSignerIdentifier identifies the signer by the issuer and serial
// number of cert.
func (s *SignerInfo) SetSignerIdentifier(cert *x509cert.Certificate) error {
	sid, err := NewIssuerAndSerialNumber(cert)
	if err != nil {
		return err
	}
	s.sid, s.version = sid, 1
	return nil
}

// SetSubjectKeyIdentifier identifies the signer by key identifier. The
// SignerInfo version becomes 3.
func (s *SignerInfo) SetSubjectKeyIdentifier(ski []byte) {
	s.sid = asn1der.MustImplicit(0, asn1der.NewOctetString(ski))
	s.version = 3
}

// Version returns 1 for issuerAndSerialNumber, 3 for subjectKeyIdentifier.
func (s *SignerInfo) Version() int { return s.version }

// SetDigestAlgorithm sets the digest algorithm by name.
func (s *SignerInfo) SetDigestAlgorithm(hashName string) error {
	if _, err := qcrypto.NewHash(hashName); err != nil {
		return NewCMSError("signer", err)
	}
	s.hashName = hashName
	return nil
}

// DigestAlgorithm returns the digest algorithm name, empty when unset.
func (s *SignerInfo) DigestAlgorithm() string { return s.hashName }

// SignedAttributes returns the signed attribute list.
func (s *SignerInfo) SignedAttributes() *AttributeList { return s.signedAttrs }

// UnsignedAttributes returns the unsigned attribute list.
func (s *SignerInfo) UnsignedAttributes() *AttributeList { return s.unsignedAttrs }

// AddSignedAttribute adds signed attributes. It fails once the SignerInfo
// has been signed.
func (s *SignerInfo) AddSignedAttribute(attrs ...*Attribute) error {
	if s.Signed() {
		return NewCMSError("signer", ErrAlreadySigned)
	}
	s.signedAttrs.Add(attrs...)
	return nil
}

// AddUnsignedAttribute adds unsigned attributes.
func (s *SignerInfo) AddUnsignedAttribute(attrs ...*Attribute) {
	s.unsignedAttrs.Add(attrs...)
}

// SetForContentAndHash sets the digest algorithm and the content-type and
// message-digest signed attributes for eci. Calling it again replaces
// both attributes.
func (s *SignerInfo) SetForContentAndHash(eci *EncapsulatedContentInfo, hashName string) error {
	if s.Signed() {
		return NewCMSError("signer", ErrAlreadySigned)
	}
	if err := s.SetDigestAlgorithm(hashName); err != nil {
		return err
	}
	ct, err := eci.contentType()
	if err != nil {
		return NewCMSError("signer", err)
	}
	ctAttr, err := NewContentTypeAttr(ct)
	if err != nil {
		return err
	}
	digest, err := eci.Digest(hashName)
	if err != nil {
		return NewCMSError("signer", err)
	}
	s.signedAttrs.Set(ctAttr)
	s.signedAttrs.Set(NewMessageDigestAttr(digest))
	return nil
}

// Sign signs the DER encoding of the signed attributes with the default
// engine. An empty algorithm selects the default for the key and digest.
func (s *SignerInfo) Sign(key crypto.Signer, algorithm string) error {
	return s.SignWith(qcrypto.DefaultEngine, key, algorithm)
}

// SignWith is Sign with an explicit signature engine.
func (s *SignerInfo) SignWith(engine qcrypto.Engine, key crypto.Signer, algorithm string) error {
	if s.Signed() {
		return NewCMSError("sign", ErrAlreadySigned)
	}
	if s.sid == nil {
		return NewCMSError("sign", fmt.Errorf("%w: signer identifier", asn1der.ErrMissingField))
	}
	if s.hashName == "" {
		return NewCMSError("sign", fmt.Errorf("%w: digestAlgorithm", asn1der.ErrMissingField))
	}
	for _, required := range []string{OIDContentType, OIDMessageDigest} {
		if s.signedAttrs.Get(required) == nil {
			return NewCMSError("sign", fmt.Errorf("%w: %s", ErrMissingAttribute, (&Attribute{Type: required}).Name()))
		}
	}

	if algorithm == "" {
		name, err := qcrypto.DefaultSignatureAlgorithm(key.Public(), s.hashName)
		if err != nil {
			return NewCMSError("sign", err)
		}
		algorithm = name
	}
	alg, err := qcrypto.LookupAlgorithm(algorithm)
	if err != nil {
		return NewCMSError("sign", err)
	}

	der, err := s.signedAttrs.Encode()
	if err != nil {
		return NewCMSError("sign", err)
	}
	sig, err := engine.Sign(der, alg.Name, key)
	if err != nil {
		return NewCMSError("sign", err)
	}
	s.sigAlg, s.signedDER, s.signature = alg.Name, der, sig
	return nil
}

// Signed reports whether Sign has completed.
func (s *SignerInfo) Signed() bool { return s.signature != nil }

// SignatureAlgorithm returns the signature algorithm name, empty until signed.
func (s *SignerInfo) SignatureAlgorithm() string { return s.sigAlg }

// Signature returns the signature value, nil until signed.
func (s *SignerInfo) Signature() []byte { return s.signature }

// SignedAttributesDER returns the signed attributes as they were signed,
// with the SET OF tag.
func (s *SignerInfo) SignedAttributesDER() []byte { return s.signedDER }

// Tag returns the SEQUENCE tag.
func (s *SignerInfo) Tag() byte { return tlv.TagSequence }

// Encode returns the DER encoding.
//
//	SignerInfo ::= SEQUENCE {
//	  version CMSVersion,
//	  sid SignerIdentifier,
//	  digestAlgorithm DigestAlgorithmIdentifier,
//	  signedAttrs [0] IMPLICIT SignedAttributes OPTIONAL,
//	  signatureAlgorithm SignatureAlgorithmIdentifier,
//	  signature SignatureValue,
//	  unsignedAttrs [1] IMPLICIT UnsignedAttributes OPTIONAL }
func (s *SignerInfo) Encode() ([]byte, error) {
	if !s.Signed() {
		return nil, NewCMSError("encode", fmt.Errorf("%w: signature (SignerInfo not signed)", asn1der.ErrMissingField))
	}
	digestAlg, err := qcrypto.DigestAlgorithmIdentifier(s.hashName)
	if err != nil {
		return nil, NewCMSError("encode", err)
	}
	sigAlg, err := qcrypto.SignatureAlgorithmIdentifier(s.sigAlg)
	if err != nil {
		return nil, NewCMSError("encode", err)
	}

	signed := append([]byte{}, s.signedDER...)
	signed[0] = tlv.ClassContext | tlv.Constructed | 0
	signedRaw, err := asn1der.NewRaw(signed)
	if err != nil {
		return nil, NewCMSError("encode", err)
	}

	seq := asn1der.NewSequence(
		asn1der.NewInteger(int64(s.version)),
		s.sid,
		digestAlg,
		signedRaw,
		sigAlg,
		asn1der.NewOctetString(s.signature),
	)
	if s.unsignedAttrs.Len() > 0 {
		seq.Append(asn1der.MustImplicit(1, s.unsignedAttrs))
	}
	return seq.Encode()
}
