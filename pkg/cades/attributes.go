package cades

import (
	"fmt"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/cms"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/tsp"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// Attribute type and qualifier OIDs (RFC 5126).
const (
	OIDSignatureTimeStampToken = "1.2.840.113549.1.9.16.2.14"
	OIDSignaturePolicyID       = "1.2.840.113549.1.9.16.2.15"
	OIDCompleteCertificateRefs = "1.2.840.113549.1.9.16.2.21"
	OIDSPURI                   = "1.2.840.113549.1.9.16.5.1"
)

// DefaultHash is the digest used by OtherHash and OtherCertID when none
// is given.
const DefaultHash = "sha256"

// NewOtherHashAlgAndValue builds OtherHashAlgAndValue from a precomputed
// digest.
//
//	OtherHashAlgAndValue ::= SEQUENCE {
//	  hashAlgorithm AlgorithmIdentifier,
//	  hashValue     OCTET STRING }
func NewOtherHashAlgAndValue(hashName string, digest []byte) (*asn1der.Sequence, error) {
	h, err := qcrypto.NewHash(hashName)
	if err != nil {
		return nil, NewCAdESError("attribute", err)
	}
	if len(digest) != h.Size() {
		return nil, NewCAdESError("attribute", fmt.Errorf("%w: %s digest must be %d bytes, got %d",
			asn1der.ErrInvalidValue, hashName, h.Size(), len(digest)))
	}
	algID, err := qcrypto.DigestAlgorithmIdentifier(hashName)
	if err != nil {
		return nil, NewCAdESError("attribute", err)
	}
	return asn1der.NewSequence(algID, asn1der.NewOctetString(digest)), nil
}

// NewOtherHash hashes data into an OtherHash. SHA-1 uses the bare
// OCTET STRING choice; other digests use OtherHashAlgAndValue. An empty
// hashName selects DefaultHash.
func NewOtherHash(hashName string, data []byte) (asn1der.Value, error) {
	if hashName == "" {
		hashName = DefaultHash
	}
	digest, err := qcrypto.Digest(hashName, data)
	if err != nil {
		return nil, NewCAdESError("attribute", err)
	}
	if hashName == "sha1" {
		return asn1der.NewOctetString(digest), nil
	}
	return NewOtherHashAlgAndValue(hashName, digest)
}

// NewOtherCertID references cert by hash and, optionally, by issuer and
// serial number.
//
//	OtherCertID ::= SEQUENCE {
//	  otherCertHash OtherHash,
//	  issuerSerial  IssuerSerial OPTIONAL }
func NewOtherCertID(cert *x509cert.Certificate, hashName string, withIssuerSerial bool) (*asn1der.Sequence, error) {
	h, err := NewOtherHash(hashName, cert.Raw())
	if err != nil {
		return nil, err
	}
	id := asn1der.NewSequence(h)
	if withIssuerSerial {
		is, err := cms.NewIssuerSerial(cert)
		if err != nil {
			return nil, NewCAdESError("attribute", err)
		}
		id.Append(is)
	}
	return id, nil
}

// NewCompleteCertificateRefs creates the complete-certificate-references
// attribute listing one OtherCertID per certificate, in order.
func NewCompleteCertificateRefs(certs []*x509cert.Certificate, hashName string, withIssuerSerial bool) (*cms.Attribute, error) {
	if len(certs) == 0 {
		return nil, NewCAdESError("attribute", fmt.Errorf("%w: no certificates", asn1der.ErrMissingField))
	}
	refs := asn1der.NewSequence()
	for _, c := range certs {
		id, err := NewOtherCertID(c, hashName, withIssuerSerial)
		if err != nil {
			return nil, err
		}
		refs.Append(id)
	}
	return &cms.Attribute{Type: OIDCompleteCertificateRefs, Values: []asn1der.Value{refs}}, nil
}

// SignaturePolicy identifies an explicit signature policy (CAdES-EPES).
type SignaturePolicy struct {
	OID           string // dotted policy OID
	HashAlgorithm string // digest of the policy document, DefaultHash when empty
	Hash          []byte // digest value
	URI           string // optional SPuri qualifier
}

// NewSignaturePolicyIdentifier creates the signature-policy-identifier
// signed attribute.
//
//	SignaturePolicyId ::= SEQUENCE {
//	  sigPolicyId         OBJECT IDENTIFIER,
//	  sigPolicyHash       OtherHashAlgAndValue,
//	  sigPolicyQualifiers SEQUENCE OF SigPolicyQualifierInfo OPTIONAL }
func NewSignaturePolicyIdentifier(p SignaturePolicy) (*cms.Attribute, error) {
	if p.OID == "" || len(p.Hash) == 0 {
		return nil, NewCAdESError("attribute", fmt.Errorf("%w: policy OID and hash are required", ErrInvalidPolicy))
	}
	policyOID, err := asn1der.NewObjectIdentifier(p.OID)
	if err != nil {
		return nil, NewCAdESError("attribute", err)
	}
	hashName := p.HashAlgorithm
	if hashName == "" {
		hashName = DefaultHash
	}
	policyHash, err := NewOtherHashAlgAndValue(hashName, p.Hash)
	if err != nil {
		return nil, err
	}

	policyID := asn1der.NewSequence(policyOID, policyHash)
	if p.URI != "" {
		uri, err := asn1der.NewIA5String(p.URI)
		if err != nil {
			return nil, NewCAdESError("attribute", err)
		}
		qualifier := asn1der.NewSequence(asn1der.MustOID(OIDSPURI), uri)
		policyID.Append(asn1der.NewSequence(qualifier))
	}
	return &cms.Attribute{Type: OIDSignaturePolicyID, Values: []asn1der.Value{policyID}}, nil
}

// NewSignatureTimeStamp creates the signature-time-stamp unsigned
// attribute from an encoded timestamp token.
func NewSignatureTimeStamp(token []byte) (*cms.Attribute, error) {
	if _, err := tsp.ParseToken(token); err != nil {
		return nil, NewCAdESError("attribute", err)
	}
	raw, err := asn1der.NewRaw(token)
	if err != nil {
		return nil, NewCAdESError("attribute", err)
	}
	return &cms.Attribute{Type: OIDSignatureTimeStampToken, Values: []asn1der.Value{raw}}, nil
}
