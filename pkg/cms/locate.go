package cms

import (
	"fmt"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// SignedDataLayout holds the byte ranges of every SignedData field inside
// an encoded ContentInfo. Optional fields that are absent have a zero Span.
type SignedDataLayout struct {
	Buf []byte

	ContentInfo      tlv.Span
	SignedData       tlv.Span
	Version          tlv.Span
	DigestAlgorithms tlv.Span
	EncapContentInfo tlv.Span
	Certificates     tlv.Span // [0] IMPLICIT
	CRLs             tlv.Span // [1] IMPLICIT
	SignerInfos      tlv.Span
	Signers          []SignerInfoLayout
}

// SignerInfoLayout holds the byte ranges of one SignerInfo's fields.
type SignerInfoLayout struct {
	SignerInfo         tlv.Span
	Version            tlv.Span
	SID                tlv.Span
	DigestAlgorithm    tlv.Span
	SignedAttrs        tlv.Span // [0] IMPLICIT, zero when absent
	SignatureAlgorithm tlv.Span
	Signature          tlv.Span
	UnsignedAttrs      tlv.Span // [1] IMPLICIT, zero when absent
}

const (
	tagCertificates = tlv.ClassContext | tlv.Constructed | 0
	tagCRLs         = tlv.ClassContext | tlv.Constructed | 1
	tagSignedAttrs  = tlv.ClassContext | tlv.Constructed | 0
	tagUnsigned     = tlv.ClassContext | tlv.Constructed | 1
	tagSubjectKeyID = tlv.ClassContext | 0
)

func locateErr(format string, args ...any) error {
	return NewCMSError("locate", fmt.Errorf("%w: "+format, append([]any{ErrInvalidContent}, args...)...))
}

// LocateSignedData finds the fields of a ContentInfo holding SignedData
// without decoding their contents. The spans reference der.
func LocateSignedData(der []byte) (*SignedDataLayout, error) {
	if err := tlv.Check(der); err != nil {
		return nil, NewCMSError("locate", err)
	}
	if der[0] != tlv.TagSequence {
		return nil, locateErr("ContentInfo is not a SEQUENCE")
	}
	ci, err := tlv.Children(der, 0)
	if err != nil {
		return nil, NewCMSError("locate", err)
	}
	if len(ci) != 2 || der[ci[0]] != tlv.TagOID || der[ci[1]] != tlv.ClassContext|tlv.Constructed|0 {
		return nil, locateErr("bad ContentInfo")
	}
	ctContent, _ := tlv.Value(der, ci[0])
	ct, err := asn1der.DecodeOIDContent(ctContent)
	if err != nil {
		return nil, NewCMSError("locate", err)
	}
	if ct != OIDSignedData {
		return nil, NewCMSError("locate", fmt.Errorf("%w: content type %s", ErrNotSignedData, ct))
	}

	sdOff, err := tlv.Child(der, ci[1], 0)
	if err != nil {
		return nil, NewCMSError("locate", err)
	}
	if der[sdOff] != tlv.TagSequence {
		return nil, locateErr("SignedData is not a SEQUENCE")
	}

	l := &SignedDataLayout{Buf: der}
	l.ContentInfo, _ = tlv.SpanOf(der, 0)
	l.SignedData, _ = tlv.SpanOf(der, sdOff)

	fields, err := tlv.Children(der, sdOff)
	if err != nil {
		return nil, NewCMSError("locate", err)
	}
	if len(fields) < 4 {
		return nil, locateErr("SignedData has %d fields", len(fields))
	}
	expect := []byte{tlv.TagInteger, tlv.TagSet, tlv.TagSequence}
	for i, tag := range expect {
		if der[fields[i]] != tag {
			return nil, locateErr("SignedData field %d has tag 0x%02x", i, der[fields[i]])
		}
	}
	l.Version, _ = tlv.SpanOf(der, fields[0])
	l.DigestAlgorithms, _ = tlv.SpanOf(der, fields[1])
	l.EncapContentInfo, _ = tlv.SpanOf(der, fields[2])

	rest := fields[3:]
	if len(rest) > 0 && der[rest[0]] == tagCertificates {
		l.Certificates, _ = tlv.SpanOf(der, rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 && der[rest[0]] == tagCRLs {
		l.CRLs, _ = tlv.SpanOf(der, rest[0])
		rest = rest[1:]
	}
	if len(rest) != 1 || der[rest[0]] != tlv.TagSet {
		return nil, locateErr("signerInfos SET not found")
	}
	l.SignerInfos, _ = tlv.SpanOf(der, rest[0])

	infos, err := tlv.Children(der, rest[0])
	if err != nil {
		return nil, NewCMSError("locate", err)
	}
	for i, off := range infos {
		sl, err := locateSignerInfo(der, off)
		if err != nil {
			return nil, NewCMSError("locate", fmt.Errorf("signerInfo %d: %w", i, err))
		}
		l.Signers = append(l.Signers, sl)
	}
	return l, nil
}

func locateSignerInfo(der []byte, off int) (SignerInfoLayout, error) {
	var sl SignerInfoLayout
	if der[off] != tlv.TagSequence {
		return sl, fmt.Errorf("%w: SignerInfo is not a SEQUENCE", ErrInvalidContent)
	}
	sl.SignerInfo, _ = tlv.SpanOf(der, off)

	f, err := tlv.Children(der, off)
	if err != nil {
		return sl, err
	}
	if len(f) < 5 {
		return sl, fmt.Errorf("%w: SignerInfo has %d fields", ErrInvalidContent, len(f))
	}
	if der[f[0]] != tlv.TagInteger {
		return sl, fmt.Errorf("%w: bad SignerInfo version", ErrInvalidContent)
	}
	if der[f[1]] != tlv.TagSequence && der[f[1]] != tagSubjectKeyID {
		return sl, fmt.Errorf("%w: bad SignerIdentifier", ErrInvalidContent)
	}
	if der[f[2]] != tlv.TagSequence {
		return sl, fmt.Errorf("%w: bad digestAlgorithm", ErrInvalidContent)
	}
	sl.Version, _ = tlv.SpanOf(der, f[0])
	sl.SID, _ = tlv.SpanOf(der, f[1])
	sl.DigestAlgorithm, _ = tlv.SpanOf(der, f[2])

	i := 3
	if der[f[i]] == tagSignedAttrs {
		sl.SignedAttrs, _ = tlv.SpanOf(der, f[i])
		i++
	}
	if len(f) < i+2 || der[f[i]] != tlv.TagSequence || der[f[i+1]] != tlv.TagOctetString {
		return sl, fmt.Errorf("%w: bad signatureAlgorithm or signature", ErrInvalidContent)
	}
	sl.SignatureAlgorithm, _ = tlv.SpanOf(der, f[i])
	sl.Signature, _ = tlv.SpanOf(der, f[i+1])
	i += 2

	if i < len(f) {
		if der[f[i]] != tagUnsigned || i+1 != len(f) {
			return sl, fmt.Errorf("%w: unexpected SignerInfo field tag 0x%02x", ErrInvalidContent, der[f[i]])
		}
		sl.UnsignedAttrs, _ = tlv.SpanOf(der, f[i])
	}
	return sl, nil
}

// SignedAttrsForVerify returns the signed attributes re-tagged as the
// SET OF that the signature covers, or nil when absent.
func (s SignerInfoLayout) SignedAttrsForVerify() []byte {
	if s.SignedAttrs.IsZero() {
		return nil
	}
	b := append([]byte{}, s.SignedAttrs.Bytes()...)
	b[0] = tlv.TagSet
	return b
}
