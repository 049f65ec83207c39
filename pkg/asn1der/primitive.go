package asn1der

import (
	"encoding/hex"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Boolean is an ASN.1 BOOLEAN.
type Boolean struct {
	v     bool
	cache []byte
}

var _ Value = (*Boolean)(nil)

// NewBoolean returns a BOOLEAN holding v.
func NewBoolean(v bool) *Boolean { return &Boolean{v: v} }

// Tag returns 0x01.
func (b *Boolean) Tag() byte { return tlv.TagBoolean }

// Bool returns the value.
func (b *Boolean) Bool() bool { return b.v }

// Set changes the value.
func (b *Boolean) Set(v bool) {
	b.v = v
	b.cache = nil
}

// Encode returns 0101ff for true and 010100 for false.
func (b *Boolean) Encode() ([]byte, error) {
	if b.cache == nil {
		c := byte(0x00)
		if b.v {
			c = 0xff
		}
		b.cache = encodeTLV(tlv.TagBoolean, []byte{c})
	}
	return b.cache, nil
}

// Null is an ASN.1 NULL.
type Null struct{}

var _ Value = Null{}

// NewNull returns a NULL.
func NewNull() Null { return Null{} }

// Tag returns 0x05.
func (Null) Tag() byte { return tlv.TagNull }

// Encode returns 0500.
func (Null) Encode() ([]byte, error) { return []byte{tlv.TagNull, 0x00}, nil }

// OctetString is an ASN.1 OCTET STRING. Its content is either raw bytes
// or the encoding of an inner value.
type OctetString struct {
	data  []byte
	inner Value
	cache []byte
}

var _ Value = (*OctetString)(nil)

// NewOctetString returns an OCTET STRING holding a copy of data.
func NewOctetString(data []byte) *OctetString {
	return &OctetString{data: append([]byte{}, data...)}
}

// NewOctetStringHex returns an OCTET STRING from hex content.
func NewOctetStringHex(s string) (*OctetString, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError("octet string", ErrInvalidValue)
	}
	return &OctetString{data: data}, nil
}

// NewOctetStringEncapsulating returns an OCTET STRING whose content is
// the encoding of inner, as used for X.509 extension values.
func NewOctetStringEncapsulating(inner Value) *OctetString {
	return &OctetString{inner: inner}
}

// Tag returns 0x04.
func (o *OctetString) Tag() byte { return tlv.TagOctetString }

// Bytes returns the content bytes.
func (o *OctetString) Bytes() ([]byte, error) {
	if o.inner != nil {
		return o.inner.Encode()
	}
	return o.data, nil
}

// SetBytes replaces the content.
func (o *OctetString) SetBytes(data []byte) {
	o.data = append([]byte{}, data...)
	o.inner = nil
	o.cache = nil
}

// Encode returns the DER encoding.
func (o *OctetString) Encode() ([]byte, error) {
	if o.inner != nil {
		content, err := o.inner.Encode()
		if err != nil {
			return nil, err
		}
		return encodeTLV(tlv.TagOctetString, content), nil
	}
	if o.cache == nil {
		o.cache = encodeTLV(tlv.TagOctetString, o.data)
	}
	return o.cache, nil
}
