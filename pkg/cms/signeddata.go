package cms

import (
	"fmt"
	"slices"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// SignedData assembles a CMS SignedData (RFC 5652 Section 5).
//
// digestAlgorithms is not set directly: it is recomputed from the
// SignerInfos every time one is added.
type SignedData struct {
	eci        *EncapsulatedContentInfo
	signers    []*SignerInfo
	digestAlgs []string
	certs      []asn1der.Value
	crls       []asn1der.Value
}

var _ asn1der.Value = (*SignedData)(nil)

// NewSignedData returns a SignedData around eci.
func NewSignedData(eci *EncapsulatedContentInfo) *SignedData {
	return &SignedData{eci: eci}
}

// EncapsulatedContentInfo returns the content info.
func (sd *SignedData) EncapsulatedContentInfo() *EncapsulatedContentInfo { return sd.eci }

// AddSignerInfo appends si and recomputes digestAlgorithms.
func (sd *SignedData) AddSignerInfo(si *SignerInfo) error {
	if si.DigestAlgorithm() == "" {
		return NewCMSError("signer", fmt.Errorf("%w: digestAlgorithm", asn1der.ErrMissingField))
	}
	sd.signers = append(sd.signers, si)

	seen := make(map[string]bool, len(sd.signers))
	sd.digestAlgs = make([]string, 0, len(sd.signers))
	for _, s := range sd.signers {
		if h := s.DigestAlgorithm(); !seen[h] {
			seen[h] = true
			sd.digestAlgs = append(sd.digestAlgs, h)
		}
	}
	return nil
}

// SignerInfos returns the signers in insertion order.
func (sd *SignedData) SignerInfos() []*SignerInfo { return sd.signers }

// DigestAlgorithms returns the distinct digest algorithm names.
func (sd *SignedData) DigestAlgorithms() []string { return slices.Clone(sd.digestAlgs) }

// AddCertificate adds a DER certificate to the certificates field.
func (sd *SignedData) AddCertificate(der []byte) error {
	raw, err := asn1der.NewRaw(der)
	if err != nil {
		return NewCMSError("certificate", err)
	}
	if raw.Tag() != tlv.TagSequence {
		return NewCMSError("certificate", fmt.Errorf("%w: certificate is not a SEQUENCE", ErrInvalidContent))
	}
	sd.certs = append(sd.certs, raw)
	return nil
}

// AddCRL adds a DER CertificateList to the crls field.
func (sd *SignedData) AddCRL(der []byte) error {
	raw, err := asn1der.NewRaw(der)
	if err != nil {
		return NewCMSError("crl", err)
	}
	sd.crls = append(sd.crls, raw)
	return nil
}

// Version returns the CMSVersion: 3 when the content is not id-data or a
// signer is identified by key identifier, 1 otherwise.
func (sd *SignedData) Version() int {
	if ct, _ := sd.eci.contentType(); ct != OIDData {
		return 3
	}
	for _, s := range sd.signers {
		if s.Version() == 3 {
			return 3
		}
	}
	return 1
}

// Tag returns the SEQUENCE tag.
func (sd *SignedData) Tag() byte { return tlv.TagSequence }

// Encode returns the SignedData encoding. Certificates, CRLs and
// SignerInfos keep insertion order; digestAlgorithms is DER sorted.
func (sd *SignedData) Encode() ([]byte, error) {
	if sd.eci == nil {
		return nil, NewCMSError("encode", fmt.Errorf("%w: encapContentInfo", asn1der.ErrMissingField))
	}

	algs := asn1der.NewSet()
	for _, h := range sd.digestAlgs {
		id, err := qcrypto.DigestAlgorithmIdentifier(h)
		if err != nil {
			return nil, NewCMSError("encode", err)
		}
		algs.Append(id)
	}

	seq := asn1der.NewSequence(asn1der.NewInteger(int64(sd.Version())), algs, sd.eci)
	if len(sd.certs) > 0 {
		seq.Append(asn1der.MustImplicit(0, asn1der.NewSetUnsorted(sd.certs...)))
	}
	if len(sd.crls) > 0 {
		seq.Append(asn1der.MustImplicit(1, asn1der.NewSetUnsorted(sd.crls...)))
	}
	infos := asn1der.NewSetUnsorted()
	for _, s := range sd.signers {
		infos.Append(s)
	}
	seq.Append(infos)
	return seq.Encode()
}

// ContentInfo wraps the SignedData in a ContentInfo.
func (sd *SignedData) ContentInfo() *ContentInfo {
	return &ContentInfo{ContentType: OIDSignedData, Content: sd}
}

// EncodeContentInfo returns the ContentInfo encoding.
func (sd *SignedData) EncodeContentInfo() ([]byte, error) {
	return sd.ContentInfo().Encode()
}
