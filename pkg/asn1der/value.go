// Package asn1der is a DER object model: every ASN.1 value kind is a
// concrete type implementing Value, and each knows how to produce its
// canonical encoding.
//
// Primitive values memoize their encoding. Every setter drops the
// memoized bytes, so the next Encode recomputes them. Sequence, Set and
// Tagged re-encode their children on each call because a child may
// have changed since the last call.
package asn1der

import (
	"encoding/hex"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Value is any DER-encodable ASN.1 value.
type Value interface {
	// Tag returns the identifier octet.
	Tag() byte
	// Encode returns the full tag-length-value encoding. The returned
	// slice must not be modified.
	Encode() ([]byte, error)
}

// EncodeHex returns the encoding of v as lowercase hex.
func EncodeHex(v Value) (string, error) {
	der, err := v.Encode()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(der), nil
}

// MustEncode returns the encoding of v and panics on error.
// It is meant for values built from constants.
func MustEncode(v Value) []byte {
	der, err := v.Encode()
	if err != nil {
		panic(err)
	}
	return der
}

// encodeTLV builds tag || length || content.
func encodeTLV(tag byte, content []byte) []byte {
	out := make([]byte, 0, 1+lengthSize(len(content))+len(content))
	out = append(out, tag)
	out = appendLength(out, len(content))
	return append(out, content...)
}

func lengthSize(n int) int {
	if n < 0x80 {
		return 1
	}
	size := 1
	for ; n > 0; n >>= 8 {
		size++
	}
	return size
}

func appendLength(out []byte, n int) []byte {
	if n < 0x80 {
		return append(out, byte(n))
	}
	var buf [8]byte
	i := len(buf)
	for ; n > 0; n >>= 8 {
		i--
		buf[i] = byte(n)
	}
	out = append(out, 0x80|byte(len(buf)-i))
	return append(out, buf[i:]...)
}

// EncodeLength returns the DER length octets for n.
func EncodeLength(n int) []byte {
	return appendLength(nil, n)
}

// WrapTLV returns tag || length || content. It is the building block for
// callers that assemble an encoding from parts they already hold, such as
// a SignerInfo whose signed portion must stay byte-identical.
func WrapTLV(tag byte, content []byte) []byte {
	return encodeTLV(tag, content)
}

// encodeAll concatenates the encodings of vs.
func encodeAll(op string, vs []Value) ([][]byte, int, error) {
	parts := make([][]byte, len(vs))
	total := 0
	for i, v := range vs {
		if v == nil {
			return nil, 0, newError(op, ErrMissingField)
		}
		der, err := v.Encode()
		if err != nil {
			return nil, 0, err
		}
		parts[i] = der
		total += len(der)
	}
	return parts, total, nil
}

// Raw is a pre-encoded TLV carried through unchanged.
type Raw struct {
	der []byte
}

var _ Value = (*Raw)(nil)

// NewRaw wraps an existing encoding after checking it is one well-formed TLV.
func NewRaw(der []byte) (*Raw, error) {
	if err := tlv.Check(der); err != nil {
		return nil, newError("raw", err)
	}
	return &Raw{der: append([]byte(nil), der...)}, nil
}

// NewRawHex wraps a hex-encoded TLV.
func NewRawHex(s string) (*Raw, error) {
	der, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError("raw", ErrInvalidValue)
	}
	return NewRaw(der)
}

// Tag returns the first octet of the wrapped encoding.
func (r *Raw) Tag() byte { return r.der[0] }

// Encode returns the wrapped encoding.
func (r *Raw) Encode() ([]byte, error) { return r.der, nil }
