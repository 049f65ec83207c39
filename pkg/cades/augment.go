package cades

import (
	"fmt"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/cms"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// SignedDataForUnsigned is a parsed SignedData whose signers can receive
// new unsigned attributes. Everything except the unsignedAttrs fields is
// re-emitted byte for byte.
type SignedDataForUnsigned struct {
	Layout  *cms.SignedDataLayout
	Signers []*SignerInfoForUnsigned
}

// SignerInfoForUnsigned holds one SignerInfo's byte ranges together with
// its unsigned attributes. Existing attributes stay as their original
// TLVs; they are not decoded.
type SignerInfoForUnsigned struct {
	Layout   cms.SignerInfoLayout
	unsigned []asn1der.Value
}

// ParseSignedDataForAddingUnsigned locates every field of a ContentInfo
// holding SignedData so that unsigned attributes can be added without
// re-signing.
func ParseSignedDataForAddingUnsigned(der []byte) (*SignedDataForUnsigned, error) {
	layout, err := cms.LocateSignedData(der)
	if err != nil {
		return nil, NewCAdESError("parse", err)
	}
	sd := &SignedDataForUnsigned{Layout: layout}
	for i, sl := range layout.Signers {
		si, err := ParseSignerInfoForAddingUnsigned(sl)
		if err != nil {
			return nil, NewCAdESError("parse", fmt.Errorf("signerInfo %d: %w", i, err))
		}
		sd.Signers = append(sd.Signers, si)
	}
	return sd, nil
}

// ParseSignerInfoForAddingUnsigned wraps one located SignerInfo.
func ParseSignerInfoForAddingUnsigned(layout cms.SignerInfoLayout) (*SignerInfoForUnsigned, error) {
	si := &SignerInfoForUnsigned{Layout: layout}
	if layout.UnsignedAttrs.IsZero() {
		return si, nil
	}
	buf := layout.UnsignedAttrs.Buf
	kids, err := tlv.Children(buf, layout.UnsignedAttrs.Off)
	if err != nil {
		return nil, err
	}
	for _, k := range kids {
		if buf[k] != tlv.TagSequence {
			return nil, fmt.Errorf("%w: unsigned attribute is not a SEQUENCE", cms.ErrInvalidContent)
		}
		b, _ := tlv.TLV(buf, k)
		raw, err := asn1der.NewRaw(b)
		if err != nil {
			return nil, err
		}
		si.unsigned = append(si.unsigned, raw)
	}
	return si, nil
}

// Signer returns the signer at index i.
func (sd *SignedDataForUnsigned) Signer(i int) (*SignerInfoForUnsigned, error) {
	if i < 0 || i >= len(sd.Signers) {
		return nil, NewCAdESError("parse", fmt.Errorf("%w: %d of %d", ErrSignerIndex, i, len(sd.Signers)))
	}
	return sd.Signers[i], nil
}

// SignatureValue returns the content of the signature OCTET STRING.
func (si *SignerInfoForUnsigned) SignatureValue() []byte {
	v, _ := si.Layout.Signature.Value()
	return v
}

// UnsignedAttributeTypes returns the dotted attribute type of every
// unsigned attribute, in order.
func (si *SignerInfoForUnsigned) UnsignedAttributeTypes() []string {
	out := make([]string, 0, len(si.unsigned))
	for _, v := range si.unsigned {
		out = append(out, attributeType(v))
	}
	return out
}

// UnsignedAttributes returns the unsigned attributes, decoding them on
// demand.
func (si *SignerInfoForUnsigned) UnsignedAttributes() ([]*cms.Attribute, error) {
	out := make([]*cms.Attribute, 0, len(si.unsigned))
	for _, v := range si.unsigned {
		der, err := v.Encode()
		if err != nil {
			return nil, err
		}
		a, err := cms.ParseAttribute(der)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AddUnsigned appends an unsigned attribute after the existing ones.
func (si *SignerInfoForUnsigned) AddUnsigned(a *cms.Attribute) {
	si.unsigned = append(si.unsigned, a)
}

// SetUnsigned replaces every unsigned attribute of the same type with a,
// or appends it when none exists.
func (si *SignerInfoForUnsigned) SetUnsigned(a *cms.Attribute) {
	kept := si.unsigned[:0]
	pos := -1
	for _, v := range si.unsigned {
		if attributeType(v) == a.Type {
			if pos < 0 {
				pos = len(kept)
				kept = append(kept, a)
			}
			continue
		}
		kept = append(kept, v)
	}
	si.unsigned = kept
	if pos < 0 {
		si.unsigned = append(si.unsigned, a)
	}
}

// Encode re-emits the SignerInfo. The fields from version through the
// signature are copied verbatim.
func (si *SignerInfoForUnsigned) Encode() ([]byte, error) {
	l := si.Layout
	content := append([]byte{}, l.Version.Buf[l.Version.Off:l.Signature.End()]...)
	if len(si.unsigned) > 0 {
		// Kept in arrival order: earlier attributes are carried as raw
		// TLVs and a timestamp must follow the attributes it covers.
		attrs, err := asn1der.MustImplicit(1, asn1der.NewSetUnsorted(si.unsigned...)).Encode()
		if err != nil {
			return nil, NewCAdESError("encode", err)
		}
		content = append(content, attrs...)
	}
	return asn1der.WrapTLV(tlv.TagSequence, content), nil
}

// Encode re-emits the whole ContentInfo. Only the signerInfos SET is
// rebuilt.
func (sd *SignedDataForUnsigned) Encode() ([]byte, error) {
	l := sd.Layout
	content := append([]byte{}, l.Buf[l.Version.Off:l.SignerInfos.Off]...)

	var infos []byte
	for _, si := range sd.Signers {
		b, err := si.Encode()
		if err != nil {
			return nil, err
		}
		infos = append(infos, b...)
	}
	content = append(content, asn1der.WrapTLV(tlv.TagSet, infos)...)

	signedData := asn1der.WrapTLV(tlv.TagSequence, content)
	ci := append(asn1der.MustEncode(asn1der.MustOID(cms.OIDSignedData)),
		asn1der.WrapTLV(tlv.ClassContext|tlv.Constructed|0, signedData)...)
	return asn1der.WrapTLV(tlv.TagSequence, ci), nil
}

// attributeType reads the attrType OID of an encoded attribute. It
// returns "" when the value cannot be read.
func attributeType(v asn1der.Value) string {
	if a, ok := v.(*cms.Attribute); ok {
		return a.Type
	}
	der, err := v.Encode()
	if err != nil {
		return ""
	}
	off, err := tlv.Child(der, 0, 0)
	if err != nil || der[off] != tlv.TagOID {
		return ""
	}
	content, _ := tlv.Value(der, off)
	dotted, err := asn1der.DecodeOIDContent(content)
	if err != nil {
		return ""
	}
	return dotted
}
