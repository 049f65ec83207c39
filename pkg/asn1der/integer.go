package asn1der

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Integer is an ASN.1 INTEGER of arbitrary size.
type Integer struct {
	v     *big.Int
	cache []byte
}

var _ Value = (*Integer)(nil)

// NewInteger returns an INTEGER holding v.
func NewInteger(v int64) *Integer {
	return &Integer{v: big.NewInt(v)}
}

// NewIntegerBig returns an INTEGER holding a copy of v.
func NewIntegerBig(v *big.Int) *Integer {
	return &Integer{v: new(big.Int).Set(v)}
}

// NewIntegerHex returns a non-negative INTEGER whose magnitude is the
// given big-endian hex string.
func NewIntegerHex(s string) (*Integer, error) {
	v, err := parseHexMagnitude(s)
	if err != nil {
		return nil, newError("integer", err)
	}
	return &Integer{v: v}, nil
}

// Tag returns 0x02.
func (i *Integer) Tag() byte { return tlv.TagInteger }

// Big returns a copy of the value.
func (i *Integer) Big() *big.Int { return new(big.Int).Set(i.v) }

// Hex returns the minimal two's-complement content as hex.
func (i *Integer) Hex() string { return hex.EncodeToString(intContent(i.v)) }

// SetBig replaces the value.
func (i *Integer) SetBig(v *big.Int) {
	i.v = new(big.Int).Set(v)
	i.cache = nil
}

// Encode returns the DER encoding.
func (i *Integer) Encode() ([]byte, error) {
	if i.cache == nil {
		i.cache = encodeTLV(tlv.TagInteger, intContent(i.v))
	}
	return i.cache, nil
}

// Enumerated is an ASN.1 ENUMERATED. It encodes like Integer.
type Enumerated struct {
	v     *big.Int
	cache []byte
}

var _ Value = (*Enumerated)(nil)

// NewEnumerated returns an ENUMERATED holding v.
func NewEnumerated(v int64) *Enumerated {
	return &Enumerated{v: big.NewInt(v)}
}

// NewEnumeratedHex returns a non-negative ENUMERATED from hex.
func NewEnumeratedHex(s string) (*Enumerated, error) {
	v, err := parseHexMagnitude(s)
	if err != nil {
		return nil, newError("enumerated", err)
	}
	return &Enumerated{v: v}, nil
}

// Tag returns 0x0a.
func (e *Enumerated) Tag() byte { return tlv.TagEnumerated }

// Int64 returns the value, truncated if it does not fit.
func (e *Enumerated) Int64() int64 { return e.v.Int64() }

// Set replaces the value.
func (e *Enumerated) Set(v int64) {
	e.v = big.NewInt(v)
	e.cache = nil
}

// Encode returns the DER encoding.
func (e *Enumerated) Encode() ([]byte, error) {
	if e.cache == nil {
		e.cache = encodeTLV(tlv.TagEnumerated, intContent(e.v))
	}
	return e.cache, nil
}

// CanonicalIntegerHex normalizes a non-negative hex magnitude into the
// content of a DER INTEGER: an odd-length string gets a leading 0 nibble,
// then a 00 byte is prepended when the high bit is set.
//
//	CanonicalIntegerHex("abcd")  == "00abcd"
//	CanonicalIntegerHex("1234")  == "1234"
//	CanonicalIntegerHex("12345") == "012345"
func CanonicalIntegerHex(s string) (string, error) {
	v, err := parseHexMagnitude(s)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(intContent(v)), nil
}

func parseHexMagnitude(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if s == "" {
		return nil, ErrInvalidValue
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, ErrInvalidValue
	}
	return v, nil
}

// intContent returns the minimal two's-complement big-endian form of v.
func intContent(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return []byte{0x00}
	case 1:
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			return append([]byte{0x00}, b...)
		}
		return b
	}

	// Negative: encode ^(-v-1) = |v|-1, invert every byte, then make sure
	// the sign bit is set.
	m := new(big.Int).Neg(v)
	m.Sub(m, big.NewInt(1))
	b := m.Bytes()
	for i := range b {
		b[i] ^= 0xff
	}
	if len(b) == 0 || b[0]&0x80 == 0 {
		return append([]byte{0xff}, b...)
	}
	return b
}

// intFromContent decodes two's-complement big-endian content.
func intFromContent(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b))*8))
	}
	return v
}
