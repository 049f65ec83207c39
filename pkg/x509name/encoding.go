package x509name

import (
	"fmt"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Encoding names the ASN.1 string type used for an attribute value.
type Encoding string

// Supported encodings.
const (
	EncodingUTF8      Encoding = "utf8"
	EncodingPrintable Encoding = "printable"
	EncodingIA5       Encoding = "ia5"
	EncodingTeletex   Encoding = "teletex"
	EncodingBMP       Encoding = "bmp"
)

// Attribute type OIDs with a mandated string type.
const (
	oidCountry      = "2.5.4.6"
	oidSerialNumber = "2.5.4.5"
	oidDNQualifier  = "2.5.4.46"
	oidEmailAddress = "1.2.840.113549.1.9.1"
	oidDomainComp   = "0.9.2342.19200300.100.1.25"
)

// requiredEncoding returns the encoding RFC 5280 mandates for an
// attribute type, or "" when the default UTF8String applies.
func requiredEncoding(typeOID string) Encoding {
	switch typeOID {
	case oidCountry, oidSerialNumber, oidDNQualifier:
		return EncodingPrintable
	case oidEmailAddress, oidDomainComp:
		return EncodingIA5
	}
	return ""
}

// Tag returns the universal tag for the encoding.
func (e Encoding) Tag() (byte, error) {
	switch e {
	case EncodingUTF8, "":
		return tlv.TagUTF8String, nil
	case EncodingPrintable:
		return tlv.TagPrintableString, nil
	case EncodingIA5:
		return tlv.TagIA5String, nil
	case EncodingTeletex:
		return tlv.TagTeletexString, nil
	case EncodingBMP:
		return tlv.TagBMPString, nil
	}
	return 0, fmt.Errorf("%w: encoding %q", asn1der.ErrUnsupportedType, string(e))
}

// defaultTag picks the string type for a value of the given attribute.
func defaultTag(typeOID, value string) byte {
	switch requiredEncoding(typeOID) {
	case EncodingPrintable:
		if asn1der.IsPrintableString(value) {
			return tlv.TagPrintableString
		}
	case EncodingIA5:
		if asn1der.IsIA5String(value) {
			return tlv.TagIA5String
		}
	}
	return tlv.TagUTF8String
}
